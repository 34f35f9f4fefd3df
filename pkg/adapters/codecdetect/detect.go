// Package codecdetect identifies the video codec of an MP4 file from its
// sample entries.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecVP9     Codec = "vp9"
	CodecJPEG    Codec = "jpeg"
	CodecPNG     Codec = "png"
	CodecUnknown Codec = "unknown"
)

// ErrNoVideoTrack is returned when the file has no video track.
var ErrNoVideoTrack = errors.New("codecdetect: no video track found")

// Intra reports whether every sample of the codec decodes on its own.
func (c Codec) Intra() bool {
	return c == CodecJPEG || c == CodecPNG
}

// FromSampleEntry maps an stsd sample entry type to a codec.
func FromSampleEntry(boxType string) Codec {
	switch boxType {
	case "avc1", "avc3":
		return CodecH264
	case "hvc1", "hev1":
		return CodecHEVC
	case "av01":
		return CodecAV1
	case "vp09":
		return CodecVP9
	case "jpeg", "mjpg", "mjpa":
		return CodecJPEG
	case "png ":
		return CodecPNG
	default:
		return CodecUnknown
	}
}

// DetectFromFile detects the video codec used in an MP4 file.
func DetectFromFile(path string) (Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return CodecUnknown, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return DetectFromReader(f)
}

// DetectFromReader detects the video codec and rewinds reader.
func DetectFromReader(reader io.ReadSeeker) (Codec, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return CodecUnknown, fmt.Errorf("decode mp4: %w", err)
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, fmt.Errorf("seek: %w", err)
	}

	return DetectFromMP4File(mp4File)
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Codec, error) {
	return DetectFromReader(bytes.NewReader(data))
}

// DetectFromMP4File returns the codec of the first video track.
func DetectFromMP4File(mp4File *mp4.File) (Codec, error) {
	for _, trak := range Traks(mp4File) {
		if !IsVideo(trak) {
			continue
		}
		return TrackCodec(trak), nil
	}
	return CodecUnknown, ErrNoVideoTrack
}

// Traks returns the tracks of a progressive or fragmented file.
func Traks(mp4File *mp4.File) []*mp4.TrakBox {
	if mp4File.Moov != nil {
		return mp4File.Moov.Traks
	}
	if mp4File.Init != nil && mp4File.Init.Moov != nil {
		return mp4File.Init.Moov.Traks
	}
	return nil
}

// IsVideo reports whether trak has a video handler.
func IsVideo(trak *mp4.TrakBox) bool {
	return trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide"
}

// TrackCodec returns the codec of trak's first sample entry.
func TrackCodec(trak *mp4.TrakBox) Codec {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return CodecUnknown
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		if c := FromSampleEntry(child.Type()); c != CodecUnknown {
			return c
		}
	}
	return CodecUnknown
}
