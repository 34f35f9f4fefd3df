// Package fmp4 writes single-track video as fragmented MP4, one fragment
// per keyframe group.
package fmp4

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ErrNoSamples is returned by Write when there is nothing to write.
var ErrNoSamples = errors.New("fmp4: no samples")

// Track describes the video track.
type Track struct {
	Width     int
	Height    int
	Timescale uint32
	// FPS sets the duration of the last sample.
	FPS float64
	// SampleEntry is the sample entry box type, e.g. "jpeg" or "av01".
	SampleEntry string
	// Config is the decoder configuration box, or nil.
	Config mp4.Box
	// Brands are the compatible brands of the ftyp box.
	Brands []string
}

// Sample is one coded frame.
type Sample struct {
	Data       []byte
	DecodeTime uint64
	Keyframe   bool
}

// Write encodes ftyp, moov and a moof/mdat pair for every run of samples
// that starts at a keyframe. The first sample always opens a fragment.
func Write(track Track, samples []Sample) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if track.Width <= 0 || track.Height <= 0 || track.Width > 0xFFFF || track.Height > 0xFFFF {
		return nil, fmt.Errorf("fmp4: invalid size %dx%d", track.Width, track.Height)
	}

	const trackID = 1
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(track.Timescale, "video", "und")
	trak := init.Moov.Trak
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox(track.SampleEntry, uint16(track.Width), uint16(track.Height), track.Config))
	trak.Tkhd.Width = mp4.Fixed32(track.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(track.Height << 16)

	var buf bytes.Buffer
	brands := track.Brands
	if len(brands) == 0 {
		brands = []string{"isom", "iso6", "mp41"}
	}
	if err := mp4.NewFtyp("isom", 0x200, brands).Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}

	var frag *mp4.Fragment
	seq := uint32(0)
	for i, s := range samples {
		if s.Keyframe || frag == nil {
			if frag != nil {
				if err := frag.Encode(&buf); err != nil {
					return nil, fmt.Errorf("encode fragment %d: %w", seq, err)
				}
			}
			seq++
			var err error
			if frag, err = mp4.CreateFragment(seq, trackID); err != nil {
				return nil, fmt.Errorf("create fragment: %w", err)
			}
		}

		flags := mp4.NonSyncSampleFlags
		if s.Keyframe {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(s.Data)),
				Dur:   duration(track, samples, i),
			},
			DecodeTime: s.DecodeTime,
			Data:       s.Data,
		})
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment %d: %w", seq, err)
	}
	return buf.Bytes(), nil
}

// duration is the gap to the next sample, or one frame period for the
// last one.
func duration(track Track, samples []Sample, i int) uint32 {
	if i+1 < len(samples) {
		return uint32(samples[i+1].DecodeTime - samples[i].DecodeTime)
	}
	if track.FPS <= 0 {
		return 1
	}
	return max(uint32(float64(track.Timescale)/track.FPS+0.5), 1)
}
