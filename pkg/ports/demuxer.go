package ports

// Demuxer reads packets from a container.
type Demuxer interface {
	// Streams returns the descriptors of every stream in the container.
	Streams() []StreamDescriptor

	// ContainerDuration returns the container-level duration in seconds, or 0.
	ContainerDuration() float64

	// Seek positions the read cursor for streamIndex near pts.
	// With exact=false the cursor lands on the last keyframe at or before pts.
	Seek(streamIndex int, pts int64, exact bool) error

	// Read returns the next packet of any stream, or nil at end of stream.
	Read() (*Packet, error)

	// Close releases the container.
	Close() error
}
