package ports

// InterpolateMode selects how frame-rate conversion creates frames.
type InterpolateMode string

const (
	// InterpolateFast duplicates or drops frames.
	InterpolateFast InterpolateMode = "fast"
	// InterpolateHighQuality synthesizes motion-compensated frames.
	InterpolateHighQuality InterpolateMode = "high-quality"
)

// FilterOptions configures a Filter.
type FilterOptions struct {
	// Output is the pixel format of filtered frames.
	Output PixelFormat
	// FPS resamples the stream to a constant rate when positive.
	FPS float64
	// Mode selects the resampling method when FPS is set.
	Mode InterpolateMode
}

// Filter converts raw frames into the output format and rate.
// Filtered frames keep the stream time base and ascending PTS order.
type Filter interface {
	// Apply filters a batch of raw frames.
	Apply(frames []*Frame) ([]*Frame, error)

	// Reset discards state carried between batches, such as the rate
	// converter's timeline. It is called after every reseek.
	Reset() error

	// Close releases the filter.
	Close() error
}
