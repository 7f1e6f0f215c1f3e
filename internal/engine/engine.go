// Package engine describes the emulation core as seen by the front-end. The
// core owns CPU, PPU and cartridge emulation; the front-end only drives it.
package engine

import (
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/frame"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/joypad"
)

// FrameFunc receives a completed frame. It is called synchronously from
// inside an advance call; the frame's pixels are only valid until it returns.
type FrameFunc func(frame.Frame)

// Engine is the part of the core contract shared by every core variant.
type Engine interface {
	// Open loads the cartridge at path.
	Open(path string) error
	// SetFrameCallback registers the vblank callback. It must be set before
	// the first advance call.
	SetFrameCallback(fn FrameFunc)
	// Input applies one joypad transition.
	Input(b joypad.Button, a joypad.Action)
	// SaveData returns a copy of the battery-backed RAM.
	SaveData() []byte
	// SetSaveData injects previously saved RAM.
	SetSaveData(data []byte) error
	// Close releases the core. No other method may be called afterwards.
	Close() error
}

// FrameAdvancer is a core that paces itself: one call runs one video frame.
type FrameAdvancer interface {
	Engine
	AdvanceFrame()
}

// CycleAdvancer is a core without internal frame pacing. Advance runs a
// fixed number of machine cycles; frame completion is signalled only through
// the frame callback.
type CycleAdvancer interface {
	Engine
	Advance(cycles int)
}
