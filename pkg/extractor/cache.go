package extractor

import "github.com/user/framefusion/pkg/ports"

// FrameCache keeps the most recent filtered batches, newest first.
// Each batch is the filter output for one packet's frames.
type FrameCache struct {
	batches [][]*ports.Frame
	limit   int
}

// NewFrameCache returns a cache holding at most limit batches.
func NewFrameCache(limit int) *FrameCache {
	if limit < 1 {
		limit = 1
	}
	return &FrameCache{limit: limit}
}

// Push adds batch as the newest entry and drops the oldest beyond the limit.
func (c *FrameCache) Push(batch []*ports.Frame) {
	c.batches = append([][]*ports.Frame{batch}, c.batches...)
	if len(c.batches) > c.limit {
		c.batches[len(c.batches)-1] = nil
		c.batches = c.batches[:c.limit]
	}
}

// Clear drops every batch.
func (c *FrameCache) Clear() {
	c.batches = nil
}

// Len returns the number of cached batches.
func (c *FrameCache) Len() int {
	return len(c.batches)
}

// Lookup returns the cached frame with the greatest PTS not after target.
// The result is confirmed when its PTS equals target or a later cached frame
// brackets target, meaning further decoding cannot produce a better match.
func (c *FrameCache) Lookup(target int64) (*ports.Frame, bool) {
	var best *ports.Frame
	for _, batch := range c.batches {
		for _, f := range batch {
			if f.PTS <= target && (best == nil || f.PTS > best.PTS) {
				best = f
			}
		}
	}
	if best == nil {
		return nil, false
	}
	if best.PTS == target {
		return best, true
	}
	for _, batch := range c.batches {
		for _, f := range batch {
			if f.PTS > best.PTS {
				return best, true
			}
		}
	}
	return best, false
}

// Find returns the cached frame with exactly pts.
func (c *FrameCache) Find(pts int64) *ports.Frame {
	for _, batch := range c.batches {
		for _, f := range batch {
			if f.PTS == pts {
				return f
			}
		}
	}
	return nil
}

// Near reports whether a cached frame lies strictly within threshold of target.
func (c *FrameCache) Near(target, threshold int64) bool {
	for _, batch := range c.batches {
		for _, f := range batch {
			d := target - f.PTS
			if d < 0 {
				d = -d
			}
			if d < threshold {
				return true
			}
		}
	}
	return false
}
