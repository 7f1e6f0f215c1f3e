// Package frame holds the front-end owned copy of the emulated screen.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Game Boy LCD geometry.
const (
	Width         = 160
	Height        = 144
	BytesPerPixel = 3
	BufferSize    = Width * Height * BytesPerPixel
)

var (
	ErrGeometry   = errors.New("frame geometry mismatch")
	ErrShortFrame = errors.New("frame data too short")
	ErrFormat     = errors.New("unsupported pixel format")
)

// PixelFormat describes the layout of Frame.Pixels.
type PixelFormat int

const (
	RGB888   PixelFormat = iota // 3 bytes R,G,B
	XRGB8888                    // little-endian uint32 0x00RRGGBB
	RGB565                      // little-endian uint16
	RGB1555                     // little-endian uint16, top bit unused
)

func (f PixelFormat) String() string {
	switch f {
	case RGB888:
		return "RGB888"
	case XRGB8888:
		return "XRGB8888"
	case RGB565:
		return "RGB565"
	case RGB1555:
		return "0RGB1555"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// BytesPerPixel returns the source pixel size, or 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGB888:
		return 3
	case XRGB8888:
		return 4
	case RGB565, RGB1555:
		return 2
	}
	return 0
}

// Frame is a completed image handed over by the engine. Pixels points into
// engine memory and is only valid for the duration of the callback.
type Frame struct {
	Pixels []byte
	Width  int
	Height int
	Pitch  int // bytes per source row
	Format PixelFormat
}

// Sink receives engine frames and keeps its own RGB copy of the last one.
type Sink struct {
	pix    []byte
	frames uint64
	err    error
}

func NewSink() *Sink {
	return &Sink{pix: make([]byte, BufferSize)}
}

// Receive is the engine's frame callback. The whole image is converted into
// the sink buffer before it returns; f.Pixels is never retained. Invalid
// frames are rejected without touching the buffer and the first such error
// is kept for Err.
func (s *Sink) Receive(f Frame) {
	if err := validate(f); err != nil {
		if s.err == nil {
			s.err = err
		}
		return
	}
	bpp := f.Format.BytesPerPixel()
	for y := 0; y < Height; y++ {
		src := f.Pixels[y*f.Pitch : y*f.Pitch+Width*bpp]
		dst := s.pix[y*Width*BytesPerPixel : (y+1)*Width*BytesPerPixel]
		convertRow(dst, src, f.Format)
	}
	s.frames++
}

func validate(f Frame) error {
	if f.Width != Width || f.Height != Height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrGeometry, f.Width, f.Height, Width, Height)
	}
	bpp := f.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: %v", ErrFormat, f.Format)
	}
	if f.Pitch < Width*bpp {
		return fmt.Errorf("%w: pitch %d below row size %d", ErrShortFrame, f.Pitch, Width*bpp)
	}
	if need := f.Pitch*(Height-1) + Width*bpp; len(f.Pixels) < need {
		return fmt.Errorf("%w: %d bytes, need %d", ErrShortFrame, len(f.Pixels), need)
	}
	return nil
}

func convertRow(dst, src []byte, format PixelFormat) {
	switch format {
	case RGB888:
		copy(dst, src)
	case XRGB8888:
		for x := 0; x < Width; x++ {
			p := src[x*4:]
			dst[x*3+0] = p[2]
			dst[x*3+1] = p[1]
			dst[x*3+2] = p[0]
		}
	case RGB565:
		for x := 0; x < Width; x++ {
			v := binary.LittleEndian.Uint16(src[x*2:])
			r, g, b := v>>11, (v>>5)&0x3F, v&0x1F
			dst[x*3+0] = byte(r<<3 | r>>2)
			dst[x*3+1] = byte(g<<2 | g>>4)
			dst[x*3+2] = byte(b<<3 | b>>2)
		}
	case RGB1555:
		for x := 0; x < Width; x++ {
			v := binary.LittleEndian.Uint16(src[x*2:])
			r, g, b := (v>>10)&0x1F, (v>>5)&0x1F, v&0x1F
			dst[x*3+0] = byte(r<<3 | r>>2)
			dst[x*3+1] = byte(g<<3 | g>>2)
			dst[x*3+2] = byte(b<<3 | b>>2)
		}
	}
}

// Pixels returns the RGB buffer. Callers must not keep it across frames.
func (s *Sink) Pixels() []byte { return s.pix }

// Frames returns the number of frames received so far.
func (s *Sink) Frames() uint64 { return s.frames }

// Err returns the first rejected frame's error.
func (s *Sink) Err() error { return s.err }

// RGBA expands the buffer to opaque RGBA into dst, growing it if needed.
func (s *Sink) RGBA(dst []byte) []byte {
	if cap(dst) < Width*Height*4 {
		dst = make([]byte, Width*Height*4)
	}
	dst = dst[:Width*Height*4]
	for i, j := 0, 0; i < len(s.pix); i, j = i+3, j+4 {
		dst[j+0] = s.pix[i+0]
		dst[j+1] = s.pix[i+1]
		dst[j+2] = s.pix[i+2]
		dst[j+3] = 0xFF
	}
	return dst
}
