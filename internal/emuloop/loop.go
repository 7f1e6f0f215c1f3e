// Package emuloop sequences one emulation session: open the ROM and its save,
// then per iteration route input, advance the engine until a frame completes
// and hand the frame to the display; finally persist save RAM exactly once.
package emuloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/engine"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/frame"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/input"
)

type State int

const (
	Uninitialized State = iota
	Running
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrStartup    = errors.New("startup failed")
	ErrNoFrame    = errors.New("engine produced no frame")
	ErrNotRunning = errors.New("loop not running")
	ErrTerminated = errors.New("loop terminated")
)

const (
	// DefaultCyclesPerStep is the Advance granularity for cores without
	// frame pacing.
	DefaultCyclesPerStep = 512
	// CyclesPerFrame is one DMG frame: 154 lines of 456 dots.
	CyclesPerFrame = 70224

	frameAdvanceLimit = 8
)

// SaveStore persists battery RAM keyed by ROM path.
type SaveStore interface {
	Load(romPath string) (blob []byte, found bool, err error)
	Save(romPath string, blob []byte) error
}

type Option func(*Loop)

func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// WithCyclesPerStep sets the Advance size used for CycleAdvancer engines.
func WithCyclesPerStep(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.cycles = n
		}
	}
}

// WithMaxAdvances bounds the advance calls spent waiting for one frame.
func WithMaxAdvances(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxAdvances = n
		}
	}
}

// WithClock replaces time.Now for frame-rate accounting.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop owns the engine, the frame buffer and the session state. All methods
// must be called from the same goroutine.
type Loop struct {
	log     *slog.Logger
	eng     engine.Engine
	saves   SaveStore
	romPath string

	sink   *frame.Sink
	router *input.Router
	state  State

	cycles      int
	maxAdvances int
	now         func() time.Time
	fps         fpsCounter
}

func New(eng engine.Engine, saves SaveStore, romPath string, opts ...Option) *Loop {
	l := &Loop{
		log:     slog.Default(),
		eng:     eng,
		saves:   saves,
		romPath: romPath,
		sink:    frame.NewSink(),
		router:  input.NewRouter(eng),
		cycles:  DefaultCyclesPerStep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.fps.log = l.log
	return l
}

func (l *Loop) State() State      { return l.state }
func (l *Loop) ROMPath() string   { return l.romPath }
func (l *Loop) Sink() *frame.Sink { return l.sink }
func (l *Loop) FPS() float64      { return l.fps.last }

// Start opens the ROM, loads its sidecar save and injects it into the
// engine. On any failure the engine is closed, the loop is Terminated and
// nothing is ever written back.
func (l *Loop) Start() error {
	if l.state != Uninitialized {
		return fmt.Errorf("%w: start while %v", ErrStartup, l.state)
	}
	switch l.eng.(type) {
	case engine.FrameAdvancer, engine.CycleAdvancer:
	default:
		l.abort()
		return fmt.Errorf("%w: engine %T cannot advance", ErrStartup, l.eng)
	}

	l.eng.SetFrameCallback(l.sink.Receive)
	if err := l.eng.Open(l.romPath); err != nil {
		l.abort()
		return fmt.Errorf("%w: open %s: %w", ErrStartup, l.romPath, err)
	}
	blob, found, err := l.saves.Load(l.romPath)
	if err != nil {
		l.abort()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	if found {
		if err := l.eng.SetSaveData(blob); err != nil {
			l.abort()
			return fmt.Errorf("%w: inject save data: %w", ErrStartup, err)
		}
	}
	l.state = Running
	l.log.Info("session started", "rom", l.romPath, "save_loaded", found)
	return nil
}

func (l *Loop) abort() {
	l.state = Terminated
	if err := l.eng.Close(); err != nil {
		l.log.Error("close engine", "err", err)
	}
}

// Step runs one iteration: events are routed in order, then the engine is
// advanced until exactly one new frame has been delivered. A cancelled ctx
// stops advancing between calls and returns nil; the caller is expected to
// notice the cancellation and shut down.
func (l *Loop) Step(ctx context.Context, events []input.KeyEvent) error {
	switch l.state {
	case Running:
	case Terminated, ShuttingDown:
		return ErrTerminated
	default:
		return ErrNotRunning
	}

	l.router.RouteAll(events)

	start := l.sink.Frames()
	limit := l.advanceLimit()
	for n := 0; l.sink.Frames() == start; n++ {
		if err := l.sink.Err(); err != nil {
			return fmt.Errorf("engine frame: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if n >= limit {
			return fmt.Errorf("%w after %d advance calls", ErrNoFrame, n)
		}
		l.advance()
	}
	if err := l.sink.Err(); err != nil {
		return fmt.Errorf("engine frame: %w", err)
	}
	l.fps.frame(l.now())
	return nil
}

func (l *Loop) advance() {
	switch e := l.eng.(type) {
	case engine.FrameAdvancer:
		e.AdvanceFrame()
	case engine.CycleAdvancer:
		e.Advance(l.cycles)
	}
}

func (l *Loop) advanceLimit() int {
	if l.maxAdvances > 0 {
		return l.maxAdvances
	}
	if _, ok := l.eng.(engine.FrameAdvancer); ok {
		return frameAdvanceLimit
	}
	// Allow a few frames' worth of cycles before giving up.
	return 4*CyclesPerFrame/l.cycles + 1
}

// Shutdown writes the engine's save RAM once and closes the engine. It is
// safe to call more than once; only the first call from Running saves.
func (l *Loop) Shutdown() error {
	switch l.state {
	case Terminated, ShuttingDown:
		return nil
	case Uninitialized:
		l.state = Terminated
		return l.eng.Close()
	}

	l.state = ShuttingDown
	l.log.Info("shutting down", "rom", l.romPath)
	saveErr := l.saves.Save(l.romPath, l.eng.SaveData())
	closeErr := l.eng.Close()
	l.state = Terminated
	return errors.Join(saveErr, closeErr)
}

type fpsCounter struct {
	log    *slog.Logger
	start  time.Time
	frames int
	last   float64
}

func (f *fpsCounter) frame(now time.Time) {
	if f.start.IsZero() {
		f.start = now
	}
	f.frames++
	if elapsed := now.Sub(f.start); elapsed >= time.Second {
		f.last = float64(f.frames) / elapsed.Seconds()
		f.log.Debug("frame rate", "fps", f.last)
		f.frames = 0
		f.start = now
	}
}
