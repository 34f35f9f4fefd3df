package ports

// Backend bundles the demuxer, decoder and filter implementations of one
// media library. The extractor only talks to these interfaces.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// OpenDemuxer opens a local file.
	OpenDemuxer(path string) (Demuxer, error)

	// NewDecoder creates a decoder for the stream.
	NewDecoder(stream StreamDescriptor, threadCount int) (Decoder, error)

	// NewFilter creates a filter for frames of the stream.
	NewFilter(stream StreamDescriptor, opts FilterOptions) (Filter, error)
}
