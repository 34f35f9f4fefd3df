package mp4demuxer

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
)

// progressiveSamples builds the sample list of a track from its stbl.
func progressiveSamples(trak *mp4.TrakBox) ([]*sampleRef, error) {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil || stbl.Stts == nil {
		return nil, fmt.Errorf("missing stsz, stsc or stts box")
	}

	sync := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			sync[nr] = true
		}
	}

	count := stbl.Stsz.SampleNumber
	samples := make([]*sampleRef, 0, count)
	var offset int64
	prevChunk := -1

	for nr := uint32(1); nr <= count; nr++ {
		chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
		if err != nil {
			return nil, fmt.Errorf("get chunk nr: %w", err)
		}
		if chunkNr != prevChunk {
			base, err := chunkOffset(stbl, chunkNr)
			if err != nil {
				return nil, err
			}
			offset = int64(base)
			for s := uint32(firstInChunk); s < nr; s++ {
				offset += int64(stbl.Stsz.GetSampleSize(int(s)))
			}
			prevChunk = chunkNr
		}

		size := stbl.Stsz.GetSampleSize(int(nr))
		decodeTime, dur := stbl.Stts.GetDecodeTime(nr)
		pts := int64(decodeTime)
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(nr))
		}

		samples = append(samples, &sampleRef{
			dts:    int64(decodeTime),
			pts:    pts,
			dur:    int64(dur),
			sync:   stbl.Stss == nil || sync[nr],
			offset: offset,
			size:   size,
		})
		offset += int64(size)
	}
	return samples, nil
}

func chunkOffset(stbl *mp4.StblBox, chunkNr int) (uint64, error) {
	switch {
	case stbl.Stco != nil:
		off, err := stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, fmt.Errorf("get chunk offset: %w", err)
		}
		return off, nil
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return 0, fmt.Errorf("chunk nr %d out of range", chunkNr)
		}
		return stbl.Co64.ChunkOffset[chunkNr-1], nil
	default:
		return 0, fmt.Errorf("no stco or co64 box")
	}
}

// fragmentedSamples collects a track's samples from every track fragment
// carrying it, in file order.
func fragmentedSamples(f *mp4.File, trak *mp4.TrakBox) ([]*sampleRef, error) {
	trackID := trak.Tkhd.TrackID

	var trex *mp4.TrexBox
	if f.Init != nil && f.Init.Moov != nil && f.Init.Moov.Mvex != nil {
		for _, t := range f.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var samples []*sampleRef
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || frag.Mdat == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd == nil || traf.Tfhd.TrackID != trackID {
					continue
				}
				runs, err := trafSamples(frag.Moof, frag.Mdat, traf, trex)
				if err != nil {
					return nil, fmt.Errorf("fragment at %d: %w", frag.Moof.StartPos, err)
				}
				samples = append(samples, runs...)
			}
		}
	}
	return samples, nil
}

// trafSamples reads the runs of one track fragment. A run without a data
// offset continues where the previous run of the same traf ended.
func trafSamples(moof *mp4.MoofBox, mdat *mp4.MdatBox, traf *mp4.TrafBox, trex *mp4.TrexBox) ([]*sampleRef, error) {
	tfhd := traf.Tfhd
	var decodeTime uint64
	if traf.Tfdt != nil {
		decodeTime = traf.Tfdt.BaseMediaDecodeTime()
	}
	base := moof.StartPos
	if tfhd.HasBaseDataOffset() {
		base = tfhd.BaseDataOffset
	}
	payload := mdat.PayloadAbsoluteOffset()

	var samples []*sampleRef
	next := base
	for _, trun := range traf.Truns {
		dur := trun.AddSampleDefaultValues(tfhd, trex)
		start := next
		if trun.HasDataOffset() {
			start = uint64(int64(base) + int64(trun.DataOffset))
		}
		size := trun.SizeOfData()
		if start < payload || start-payload+size > uint64(len(mdat.Data)) {
			return nil, fmt.Errorf("track run data at %d+%d outside mdat", start, size)
		}

		for _, s := range trun.GetFullSamples(uint32(start-payload), decodeTime, mdat) {
			samples = append(samples, &sampleRef{
				dts:  int64(s.DecodeTime),
				pts:  int64(s.DecodeTime) + int64(s.CompositionTimeOffset),
				dur:  int64(s.Dur),
				sync: s.IsSync(),
				size: s.Size,
				data: s.Data,
			})
		}
		decodeTime += dur
		next = start + size
	}
	return samples, nil
}
