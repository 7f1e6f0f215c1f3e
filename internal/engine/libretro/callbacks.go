package libretro

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/frame"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/joypad"
)

// Environment commands answered by the front-end.
const (
	envGetCanDupe          = 3
	envShutdown            = 7
	envSetPerformanceLevel = 8
	envGetSystemDirectory  = 9
	envSetPixelFormat      = 10
	envSetInputDescriptors = 11
	envGetVariable         = 15
	envSetVariables        = 16
	envGetVariableUpdate   = 17
	envSetSupportNoGame    = 18
	envGetLogInterface     = 27
	envGetSaveDirectory    = 31
	envSetGeometry         = 37
)

// retro_pixel_format values.
const (
	pixelFormat0RGB1555 = 0
	pixelFormatXRGB8888 = 1
	pixelFormatRGB565   = 2
)

const joypadIDMask = 256

// current is the core the C callbacks dispatch to.
var current *Core

type callbackSet struct {
	environment      uintptr
	videoRefresh     uintptr
	audioSample      uintptr
	audioSampleBatch uintptr
	inputPoll        uintptr
	inputState       uintptr
}

var (
	callbacksOnce sync.Once
	cbs           callbackSet
)

// callbacks creates the C entry points once; purego callback slots are never
// released.
func callbacks() callbackSet {
	callbacksOnce.Do(func() {
		cbs.environment = purego.NewCallback(func(cmd uintptr, data unsafe.Pointer) uintptr {
			if current == nil {
				return 0
			}
			return boolToUintptr(current.environment(uint32(cmd), data))
		})
		cbs.videoRefresh = purego.NewCallback(func(data unsafe.Pointer, width, height, pitch uintptr) {
			if current != nil {
				current.videoRefresh(data, int(uint32(width)), int(uint32(height)), int(pitch))
			}
		})
		cbs.audioSample = purego.NewCallback(func(left, right uintptr) {})
		cbs.audioSampleBatch = purego.NewCallback(func(data unsafe.Pointer, frames uintptr) uintptr {
			return frames
		})
		cbs.inputPoll = purego.NewCallback(func() {})
		cbs.inputState = purego.NewCallback(func(port, device, index, id uintptr) uintptr {
			if current == nil {
				return 0
			}
			return uintptr(current.inputState(uint32(port), uint32(device), uint32(index), uint32(id)))
		})
	})
	return cbs
}

func boolToUintptr(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}

func (c *Core) environment(cmd uint32, data unsafe.Pointer) bool {
	switch cmd {
	case envGetCanDupe:
		// Every retro_run must deliver a full frame.
		if data != nil {
			*(*bool)(data) = false
		}
		return true
	case envSetPixelFormat:
		if data == nil {
			return false
		}
		switch *(*int32)(data) {
		case pixelFormat0RGB1555:
			c.format = frame.RGB1555
		case pixelFormatXRGB8888:
			c.format = frame.XRGB8888
		case pixelFormatRGB565:
			c.format = frame.RGB565
		default:
			return false
		}
		return true
	case envGetSystemDirectory, envGetSaveDirectory:
		if data == nil || len(c.dirC) == 0 {
			return false
		}
		*(**byte)(data) = &c.dirC[0]
		return true
	case envGetVariableUpdate:
		if data != nil {
			*(*bool)(data) = false
		}
		return true
	case envSetPerformanceLevel, envSetInputDescriptors, envSetVariables,
		envSetSupportNoGame, envSetGeometry:
		return true
	case envGetVariable, envGetLogInterface, envShutdown:
		return false
	}
	c.log.Debug("unhandled environment command", "cmd", cmd)
	return false
}

func (c *Core) videoRefresh(data unsafe.Pointer, width, height, pitch int) {
	if c.onFrame == nil {
		return
	}
	f := frame.Frame{Width: width, Height: height, Pitch: pitch, Format: c.format}
	if data != nil && height > 0 && width > 0 {
		n := pitch*(height-1) + width*c.format.BytesPerPixel()
		f.Pixels = unsafe.Slice((*byte)(data), n)
	}
	c.onFrame(f)
}

func (c *Core) inputState(port, device, index, id uint32) int16 {
	if port != 0 || device&deviceMask != deviceJoypad || index != 0 {
		return 0
	}
	if id == joypadIDMask {
		var mask int16
		for b := joypad.Button(0); b < joypad.NumButtons; b++ {
			if c.pad.Pressed(b) {
				mask |= 1 << retroID(b)
			}
		}
		return mask
	}
	for b := joypad.Button(0); b < joypad.NumButtons; b++ {
		if retroID(b) == id {
			if c.pad.Pressed(b) {
				return 1
			}
			return 0
		}
	}
	return 0
}

// retroID maps a button to RETRO_DEVICE_ID_JOYPAD_*.
func retroID(b joypad.Button) uint32 {
	switch b {
	case joypad.B:
		return 0
	case joypad.Select:
		return 2
	case joypad.Start:
		return 3
	case joypad.Up:
		return 4
	case joypad.Down:
		return 5
	case joypad.Left:
		return 6
	case joypad.Right:
		return 7
	case joypad.A:
		return 8
	}
	return 0xFFFF
}
