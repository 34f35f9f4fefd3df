package extractor

import "github.com/user/framefusion/pkg/ports"

// CursorState is the decode position carried from one query to the next.
type CursorState struct {
	// PreviousTarget is the last successfully resolved target PTS.
	PreviousTarget int64
	// HasPrevious is false until a query succeeds, and again after a failure.
	HasPrevious bool

	// Packet is the last video packet read, nil before the first read and at end of stream.
	Packet *ports.Packet
	// Pending holds frames not yet consumed by the resolver.
	Pending []*ports.Frame
	// PendingFiltered reports whether Pending already went through the filter.
	PendingFiltered bool

	// FirstPTS is the PTS of the first filtered frame since the last reseek.
	FirstPTS int64
	// HasFirst reports whether FirstPTS is set.
	HasFirst bool
}

// resetPosition forgets everything tied to the demuxer read position.
func (c *CursorState) resetPosition() {
	c.Packet = nil
	c.Pending = nil
	c.PendingFiltered = false
	c.FirstPTS = 0
	c.HasFirst = false
}

// Reset returns the cursor to the never-queried state.
func (c *CursorState) Reset() {
	c.resetPosition()
	c.PreviousTarget = 0
	c.HasPrevious = false
}
