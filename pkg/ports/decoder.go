package ports

// Decoder turns packets of one stream into raw frames.
// A decoder is single use: after Flush it must not be used again.
type Decoder interface {
	// Decode sends a packet and returns the frames it made available.
	// It may return no frames while the decoder buffers input.
	Decode(pkt *Packet) ([]*Frame, error)

	// Flush drains the frames still buffered and destroys the decoder.
	Flush() ([]*Frame, error)
}
