package extractor

import (
	"fmt"

	"github.com/user/framefusion/pkg/ports"
)

// Stats counts the work done by an Extractor.
type Stats struct {
	Seeks           int
	PacketReads     int
	DecodersCreated int
	FilterCalls     int
	Retries         int
}

// resolver drives the demuxer, decoder and filter to find the frame shown
// at a target PTS. It owns the decoder; cursor and cache are passed in.
type resolver struct {
	demuxer ports.Demuxer
	backend ports.Backend
	filter  ports.Filter
	stream  ports.StreamDescriptor
	threads int
	decoder ports.Decoder

	threshold   int64
	retryOffset int64
	maxRetries  int

	stats *Stats
	log   ports.Logger
}

// resolve returns the frame with the greatest PTS not after target, or the
// first frame of the stream when target precedes it.
//
// Targets close to the end of the stream may leave too few packets to
// bracket them; those are retried from a seek position moved back by
// retryOffset each time, up to maxRetries times.
func (r *resolver) resolve(target int64, cur *CursorState, cache *FrameCache) (*ports.Frame, error) {
	var offset int64
	force := false

	for attempt := 0; ; attempt++ {
		frame, err := r.attempt(target, offset, force, cur, cache)
		if err != nil {
			cur.HasPrevious = false
			return nil, err
		}
		if frame != nil {
			cur.PreviousTarget = target
			cur.HasPrevious = true
			return frame, nil
		}
		if attempt >= r.maxRetries {
			cur.HasPrevious = false
			return nil, fmt.Errorf("%w: pts %d after %d retries", ErrNoMatchingFrame, target, attempt)
		}
		offset -= r.retryOffset
		force = true
		r.stats.Retries++
		r.log.Debug("No frame for pts %d, retrying from seek offset %d", target, offset)
	}
}

// attempt runs one resolution pass. A nil frame with a nil error means the
// pass ran out of input before it could bracket target.
func (r *resolver) attempt(target, offset int64, force bool, cur *CursorState, cache *FrameCache) (*ports.Frame, error) {
	if force || needsReseek(target, cur, cache, r.threshold) {
		if err := r.reseek(target, target+offset, cur, cache); err != nil {
			return nil, err
		}
	}

	output, confirmed := cache.Lookup(target)
	if confirmed {
		return output, nil
	}
	if output == nil && cur.HasFirst && target < cur.FirstPTS {
		if first := cache.Find(cur.FirstPTS); first != nil {
			return first, nil
		}
	}

	if cur.Packet == nil && len(cur.Pending) == 0 {
		if err := r.advance(cur); err != nil {
			return nil, err
		}
	}

	for (cur.Packet != nil || len(cur.Pending) > 0) && (output == nil || output.PTS < target) {
		if len(cur.Pending) > 0 {
			// Only the first batch after a seek may stand in for a target
			// that precedes every decoded frame.
			first := !cur.HasFirst
			batch, err := r.filtered(cur)
			if err != nil {
				return nil, err
			}

			if len(batch) > 0 {
				candidate := closestNotAfter(batch, target)
				if candidate == nil {
					if !first || output != nil {
						r.log.Debug("Overshot pts %d, next frame at %d", target, batch[0].PTS)
						return output, nil
					}
					candidate = batch[0]
				}

				cache.Push(batch)
				cur.Pending = nil
				cur.PendingFiltered = false

				output = candidate
				if candidate.PTS >= target || batch[len(batch)-1].PTS > target {
					break
				}
			} else {
				cur.Pending = nil
				cur.PendingFiltered = false
			}
		}

		if err := r.advance(cur); err != nil {
			return nil, err
		}
	}

	return output, nil
}

// closestNotAfter scans an ascending batch from its end.
func closestNotAfter(batch []*ports.Frame, target int64) *ports.Frame {
	for i := len(batch) - 1; i >= 0; i-- {
		if batch[i].PTS <= target {
			return batch[i]
		}
	}
	return nil
}

// filtered runs the pending raw frames through the filter once.
func (r *resolver) filtered(cur *CursorState) ([]*ports.Frame, error) {
	if !cur.PendingFiltered {
		batch, err := r.filter.Apply(cur.Pending)
		r.stats.FilterCalls++
		if err != nil {
			return nil, fmt.Errorf("filter frames: %w", err)
		}
		cur.Pending = batch
		cur.PendingFiltered = true
		if len(batch) > 0 && !cur.HasFirst {
			cur.FirstPTS = batch[0].PTS
			cur.HasFirst = true
		}
	}
	return cur.Pending, nil
}

// advance reads the next video packet and decodes it. At end of stream it
// flushes the decoder instead and leaves cur.Packet nil.
func (r *resolver) advance(cur *CursorState) error {
	cur.Packet = nil
	cur.Pending = nil
	cur.PendingFiltered = false

	for {
		pkt, err := r.demuxer.Read()
		if err != nil {
			return fmt.Errorf("read packet: %w", err)
		}
		if pkt == nil {
			break
		}
		if pkt.StreamIndex != r.stream.Index {
			continue
		}
		r.stats.PacketReads++

		if r.decoder == nil {
			if err := r.newDecoder(); err != nil {
				return err
			}
		}
		frames, err := r.decoder.Decode(pkt)
		if err != nil {
			return fmt.Errorf("decode packet at pts %d: %w", pkt.PTS, err)
		}
		cur.Packet = pkt
		cur.Pending = frames
		return nil
	}

	if r.decoder == nil {
		return nil
	}
	frames, err := r.decoder.Flush()
	r.decoder = nil
	if err != nil {
		return fmt.Errorf("flush decoder: %w", err)
	}
	r.log.Debug("End of stream, decoder flushed %d frames", len(frames))
	cur.Pending = frames
	return nil
}

// reseek moves the demuxer to seekPTS and starts a fresh decoder there.
func (r *resolver) reseek(target, seekPTS int64, cur *CursorState, cache *FrameCache) error {
	r.log.Debug("Seeking to pts %d for target %d", seekPTS, target)

	cur.resetPosition()
	cache.Clear()

	if err := r.demuxer.Seek(r.stream.Index, seekPTS, false); err != nil {
		return fmt.Errorf("seek to pts %d: %w", seekPTS, err)
	}
	r.stats.Seeks++

	if err := r.release(); err != nil {
		return err
	}
	if err := r.newDecoder(); err != nil {
		return err
	}
	if err := r.filter.Reset(); err != nil {
		return fmt.Errorf("reset filter: %w", err)
	}
	return nil
}

func (r *resolver) newDecoder() error {
	dec, err := r.backend.NewDecoder(r.stream, r.threads)
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	r.decoder = dec
	r.stats.DecodersCreated++
	r.log.Debug("Created %s decoder for stream %d", r.backend.Name(), r.stream.Index)
	return nil
}

// release flushes and drops the live decoder, discarding its frames.
func (r *resolver) release() error {
	if r.decoder == nil {
		return nil
	}
	_, err := r.decoder.Flush()
	r.decoder = nil
	if err != nil {
		return fmt.Errorf("flush decoder: %w", err)
	}
	return nil
}
