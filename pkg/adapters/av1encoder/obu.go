package av1encoder

import (
	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/mp4"
)

const obuSequenceHeader = 1

// sequenceHeader returns the first sequence header OBU of a temporal unit,
// header bytes included, or nil.
func sequenceHeader(tu []byte) []byte {
	for off := 0; off < len(tu); {
		start := off
		header := tu[off]
		obuType := (header >> 3) & 0x0F
		off++
		if header&0x04 != 0 {
			off++
		}

		size := len(tu) - off
		if header&0x02 != 0 {
			size, off = leb128(tu, off)
		}
		end := min(off+size, len(tu))
		if obuType == obuSequenceHeader {
			return tu[start:end]
		}
		off = end
	}
	return nil
}

func leb128(data []byte, off int) (int, int) {
	value := 0
	for i := 0; i < 8 && off < len(data); i++ {
		b := data[off]
		off++
		value |= int(b&0x7F) << (i * 7)
		if b&0x80 == 0 {
			break
		}
	}
	return value, off
}

// configBox builds the av1C box for 8-bit 4:2:0 output from the first
// keyframe's sequence header.
func configBox(firstKeyframe []byte) *mp4.Av1CBox {
	return &mp4.Av1CBox{
		CodecConfRec: av1.CodecConfRec{
			Version:            1,
			SeqLevelIdx0:       8,
			ChromaSubsamplingX: 1,
			ChromaSubsamplingY: 1,
			ConfigOBUs:         sequenceHeader(firstKeyframe),
		},
	}
}
