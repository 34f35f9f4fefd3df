//go:build libav

package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"

	"github.com/user/framefusion/pkg/ports"
)

// Decoder implements ports.Decoder with an avcodec context.
type Decoder struct {
	closer  *astikit.Closer
	cc      *astiav.CodecContext
	frame   *astiav.Frame
	flushed bool
}

func newDecoder(par *astiav.CodecParameters, threadCount int) (*Decoder, error) {
	codec := astiav.FindDecoder(par.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDecoder, par.CodecID())
	}

	d := &Decoder{closer: astikit.NewCloser()}
	if d.cc = astiav.AllocCodecContext(codec); d.cc == nil {
		return nil, errors.New("libav: unable to allocate a codec context")
	}
	d.closer.Add(d.cc.Free)

	if err := par.ToCodecContext(d.cc); err != nil {
		d.closer.Close()
		return nil, fmt.Errorf("copy codec parameters: %w", err)
	}
	if threadCount > 0 {
		d.cc.SetThreadCount(threadCount)
	}
	if err := d.cc.Open(codec, nil); err != nil {
		d.closer.Close()
		return nil, fmt.Errorf("open codec: %w", err)
	}

	d.frame = astiav.AllocFrame()
	d.closer.Add(d.frame.Free)
	return d, nil
}

// Decode sends pkt and returns the frames the codec released.
func (d *Decoder) Decode(pkt *ports.Packet) ([]*ports.Frame, error) {
	if d.flushed {
		return nil, ErrFlushed
	}

	ap := astiav.AllocPacket()
	defer ap.Free()
	if err := ap.FromData(pkt.Data); err != nil {
		return nil, fmt.Errorf("wrap packet: %w", err)
	}
	ap.SetPts(pkt.PTS)
	ap.SetDts(pkt.DTS)
	ap.SetDuration(pkt.Duration)
	ap.SetStreamIndex(pkt.StreamIndex)
	if pkt.Keyframe {
		ap.SetFlags(astiav.NewPacketFlags(astiav.PacketFlagKey))
	}

	send := func() error {
		if err := d.cc.SendPacket(ap); err != nil {
			return fmt.Errorf("send packet at pts %d: %w", pkt.PTS, err)
		}
		return nil
	}
	return sendAndReceive(send, d.receive, isEagain)
}

func isEagain(err error) bool {
	return errors.Is(err, astiav.ErrEagain)
}

// Flush drains buffered frames and frees the codec context.
func (d *Decoder) Flush() ([]*ports.Frame, error) {
	if d.flushed {
		return nil, ErrFlushed
	}
	d.flushed = true
	defer d.closer.Close()

	if err := d.cc.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return nil, fmt.Errorf("send flush packet: %w", err)
	}
	return d.receive()
}

func (d *Decoder) receive() ([]*ports.Frame, error) {
	var frames []*ports.Frame
	for {
		err := d.cc.ReceiveFrame(d.frame)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEagain), errors.Is(err, astiav.ErrEof):
			return frames, nil
		default:
			return frames, fmt.Errorf("receive frame: %w", err)
		}

		f, err := toPortsFrame(d.frame)
		d.frame.Unref()
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

var _ ports.Decoder = (*Decoder)(nil)
