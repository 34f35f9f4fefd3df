// Package summarizer produces reports of opened sources and extraction runs.
package summarizer

import (
	"time"

	"github.com/user/framefusion/pkg/ports"
)

// Summary contains what is known about one source after extraction.
type Summary struct {
	GeneratedAt time.Time

	Source SourceInfo

	// Streams lists every stream of the container.
	Streams []ports.StreamDescriptor

	// Frames are the extracted frames in query order.
	Frames []FrameEntry

	Stats Stats
}

// SourceInfo describes the opened source and its selected video stream.
type SourceInfo struct {
	Path     string
	Backend  string
	Codec    string
	Width    int
	Height   int
	TimeBase string
	Duration float64
}

// FrameEntry is one resolved query.
type FrameEntry struct {
	Time float64
	PTS  int64
	File string
}

// Stats counts the work done by the extractor.
type Stats struct {
	Seeks           int
	PacketReads     int
	DecodersCreated int
	FilterCalls     int
	Retries         int
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets the source information.
func (b *Builder) WithSource(info SourceInfo) *Builder {
	b.summary.Source = info
	return b
}

// WithStreams sets the container's streams.
func (b *Builder) WithStreams(streams []ports.StreamDescriptor) *Builder {
	b.summary.Streams = append([]ports.StreamDescriptor(nil), streams...)
	return b
}

// AddFrame appends a resolved query.
func (b *Builder) AddFrame(seconds float64, pts int64, file string) *Builder {
	b.summary.Frames = append(b.summary.Frames, FrameEntry{Time: seconds, PTS: pts, File: file})
	return b
}

// WithStats sets the extractor counters.
func (b *Builder) WithStats(stats Stats) *Builder {
	b.summary.Stats = stats
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
