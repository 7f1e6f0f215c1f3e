// Package libretro runs a libretro core shared library as the emulation
// engine. The library is opened at runtime with purego; no cgo is involved.
package libretro

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/engine"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/frame"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/rom"
)

const apiVersion = 1

const (
	deviceJoypad = 1
	deviceMask   = 0xFF

	memorySaveRAM = 0
)

var (
	ErrAPIVersion = errors.New("unsupported libretro API version")
	ErrCoreBusy   = errors.New("a libretro core is already loaded")
	ErrNotLoaded  = errors.New("no game loaded")
	ErrClosed     = errors.New("core closed")
)

var _ engine.FrameAdvancer = (*Core)(nil)

// SystemInfo is what the core reports about itself.
type SystemInfo struct {
	Name         string
	Version      string
	Extensions   []string
	NeedFullpath bool
}

// Layout of struct retro_system_info.
type systemInfo struct {
	libraryName     *byte
	libraryVersion  *byte
	validExtensions *byte
	needFullpath    bool
	blockExtract    bool
}

// Layout of struct retro_game_info.
type gameInfo struct {
	path *byte
	data unsafe.Pointer
	size uintptr
	meta *byte
}

type api struct {
	apiVersion func() uint32
	init       func()
	deinit     func()
	run        func()
	unloadGame func()

	setEnvironment      func(cb uintptr)
	setVideoRefresh     func(cb uintptr)
	setAudioSample      func(cb uintptr)
	setAudioSampleBatch func(cb uintptr)
	setInputPoll        func(cb uintptr)
	setInputState       func(cb uintptr)

	getSystemInfo           func(info *systemInfo)
	loadGame                func(info *gameInfo) bool
	setControllerPortDevice func(port, device uint32)
	getMemoryData           func(id uint32) unsafe.Pointer
	getMemorySize           func(id uint32) uintptr
}

// Core is a loaded libretro core. Only one may be loaded per process since
// libretro callbacks carry no context pointer.
type Core struct {
	log  *slog.Logger
	path string
	lib  uintptr
	fn   api
	info SystemInfo

	format  frame.PixelFormat
	onFrame engine.FrameFunc
	pad     joypad.State

	// Kept alive while the core may hold pointers into them.
	dirC  []byte
	pathC []byte
	image *rom.Image
	game  gameInfo

	loaded bool
	closed bool
}

// Load opens the core library at path, checks its API version and
// initialises it.
func Load(path string, log *slog.Logger) (*Core, error) {
	if log == nil {
		log = slog.Default()
	}
	if current != nil {
		return nil, ErrCoreBusy
	}
	lib, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("open core %s: %w", path, err)
	}
	c := &Core{log: log, path: path, lib: lib, format: frame.RGB1555}
	if err := c.bind(); err != nil {
		closeLibrary(lib)
		return nil, err
	}
	if v := c.fn.apiVersion(); v != apiVersion {
		closeLibrary(lib)
		return nil, fmt.Errorf("%w: %d", ErrAPIVersion, v)
	}

	cb := callbacks()
	current = c
	c.fn.setEnvironment(cb.environment)
	c.fn.init()
	c.fn.setVideoRefresh(cb.videoRefresh)
	c.fn.setAudioSample(cb.audioSample)
	c.fn.setAudioSampleBatch(cb.audioSampleBatch)
	c.fn.setInputPoll(cb.inputPoll)
	c.fn.setInputState(cb.inputState)

	var si systemInfo
	c.fn.getSystemInfo(&si)
	c.info = SystemInfo{
		Name:         goString(si.libraryName),
		Version:      goString(si.libraryVersion),
		Extensions:   rom.ParseExtensions(goString(si.validExtensions)),
		NeedFullpath: si.needFullpath,
	}
	return c, nil
}

func (c *Core) bind() error {
	syms := []struct {
		name string
		fptr any
	}{
		{"retro_api_version", &c.fn.apiVersion},
		{"retro_init", &c.fn.init},
		{"retro_deinit", &c.fn.deinit},
		{"retro_run", &c.fn.run},
		{"retro_unload_game", &c.fn.unloadGame},
		{"retro_set_environment", &c.fn.setEnvironment},
		{"retro_set_video_refresh", &c.fn.setVideoRefresh},
		{"retro_set_audio_sample", &c.fn.setAudioSample},
		{"retro_set_audio_sample_batch", &c.fn.setAudioSampleBatch},
		{"retro_set_input_poll", &c.fn.setInputPoll},
		{"retro_set_input_state", &c.fn.setInputState},
		{"retro_get_system_info", &c.fn.getSystemInfo},
		{"retro_load_game", &c.fn.loadGame},
		{"retro_set_controller_port_device", &c.fn.setControllerPortDevice},
		{"retro_get_memory_data", &c.fn.getMemoryData},
		{"retro_get_memory_size", &c.fn.getMemorySize},
	}
	for _, s := range syms {
		addr, err := lookupSymbol(c.lib, s.name)
		if err != nil {
			return fmt.Errorf("core %s: missing %s: %w", c.path, s.name, err)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return nil
}

// Info returns the core's self description.
func (c *Core) Info() SystemInfo { return c.info }

// Open loads the ROM at path into the core.
func (c *Core) Open(path string) error {
	if c.closed {
		return ErrClosed
	}
	img, err := rom.Load(path, c.info.Extensions)
	if err != nil {
		return err
	}
	if h, err := rom.ParseHeader(img.Data); err == nil {
		c.log.Info("ROM", "title", h.Title, "type", h.CartTypeStr, "cgb", h.CGB(),
			"rom_bytes", h.ROMSizeBytes, "ram_bytes", h.RAMSizeBytes, "battery", h.Battery,
			"checksum_ok", rom.HeaderChecksumOK(img.Data))
	} else {
		c.log.Warn("unreadable cartridge header", "path", path, "err", err)
	}
	if c.info.NeedFullpath && img.Archived(path) {
		return fmt.Errorf("core %s needs a plain ROM file, got archive %s", c.info.Name, filepath.Base(path))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.pathC = cString(abs)
	c.dirC = cString(filepath.Dir(abs))
	c.image = img
	c.game = gameInfo{path: &c.pathC[0]}
	if !c.info.NeedFullpath && len(img.Data) > 0 {
		c.game.data = unsafe.Pointer(&img.Data[0])
		c.game.size = uintptr(len(img.Data))
	}
	if !c.fn.loadGame(&c.game) {
		return fmt.Errorf("core %s rejected %s", c.info.Name, img.Name)
	}
	c.fn.setControllerPortDevice(0, deviceJoypad)
	c.loaded = true
	c.log.Debug("pixel format", "format", c.format)
	return nil
}

func (c *Core) SetFrameCallback(fn engine.FrameFunc) { c.onFrame = fn }

// AdvanceFrame runs retro_run once; the core emits one video frame.
func (c *Core) AdvanceFrame() {
	if !c.loaded || c.closed {
		return
	}
	c.fn.run()
}

func (c *Core) Input(b joypad.Button, a joypad.Action) {
	c.pad = c.pad.Apply(b, a)
}

// SaveData copies the core's save RAM.
func (c *Core) SaveData() []byte {
	mem := c.saveRAM()
	if mem == nil {
		return []byte{}
	}
	return bytes.Clone(mem)
}

// SetSaveData copies data into the core's save RAM. The file is trusted:
// a size mismatch is logged and whatever fits is copied.
func (c *Core) SetSaveData(data []byte) error {
	if c.closed {
		return ErrClosed
	}
	if !c.loaded {
		return ErrNotLoaded
	}
	mem := c.saveRAM()
	if len(mem) != len(data) {
		c.log.Warn("save data size differs from core save RAM",
			"file_bytes", len(data), "core_bytes", len(mem))
	}
	copy(mem, data)
	return nil
}

func (c *Core) saveRAM() []byte {
	if !c.loaded || c.closed {
		return nil
	}
	size := c.fn.getMemorySize(memorySaveRAM)
	ptr := c.fn.getMemoryData(memorySaveRAM)
	if size == 0 || ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}

// Close unloads the game, deinitialises the core and closes the library.
func (c *Core) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.loaded {
		c.fn.unloadGame()
		c.loaded = false
	}
	if c.fn.deinit != nil {
		c.fn.deinit()
	}
	if current == c {
		current = nil
	}
	if c.lib == 0 {
		return nil
	}
	if err := closeLibrary(c.lib); err != nil {
		return fmt.Errorf("close core %s: %w", c.path, err)
	}
	return nil
}

func cString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
