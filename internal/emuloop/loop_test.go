package emuloop

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/engine"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/frame"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/input"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/save"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeCore records every boundary call in order.
type fakeCore struct {
	calls    []string
	openErr  error
	onFrame  engine.FrameFunc
	ram      []byte
	injected [][]byte
	closed   int
	shade    byte
	scratch  []byte
	geometry int // override frame width when non-zero
}

func (c *fakeCore) Open(path string) error {
	c.calls = append(c.calls, "open")
	return c.openErr
}

func (c *fakeCore) SetFrameCallback(fn engine.FrameFunc) { c.onFrame = fn }

func (c *fakeCore) Input(b joypad.Button, a joypad.Action) {
	c.calls = append(c.calls, "input:"+b.String()+"/"+a.String())
}

func (c *fakeCore) SaveData() []byte {
	c.calls = append(c.calls, "savedata")
	return bytes.Clone(c.ram)
}

func (c *fakeCore) SetSaveData(data []byte) error {
	c.calls = append(c.calls, "setsavedata")
	c.injected = append(c.injected, bytes.Clone(data))
	return nil
}

func (c *fakeCore) Close() error {
	c.calls = append(c.calls, "close")
	c.closed++
	return nil
}

// emit hands over a frame from engine-owned scratch memory, then scribbles
// over it as a core reusing its buffer would.
func (c *fakeCore) emit() {
	c.shade++
	if c.scratch == nil {
		c.scratch = make([]byte, frame.BufferSize)
	}
	for i := range c.scratch {
		c.scratch[i] = c.shade
	}
	w := frame.Width
	if c.geometry != 0 {
		w = c.geometry
	}
	c.onFrame(frame.Frame{Pixels: c.scratch, Width: w, Height: frame.Height, Pitch: frame.Width * 3, Format: frame.RGB888})
	for i := range c.scratch {
		c.scratch[i] = 0xEE
	}
}

type frameCore struct {
	fakeCore
	advances int
	silent   bool
}

func (c *frameCore) AdvanceFrame() {
	c.calls = append(c.calls, "advance")
	c.advances++
	if !c.silent {
		c.emit()
	}
}

type cycleCore struct {
	fakeCore
	advances int
	cycles   int
}

func (c *cycleCore) Advance(n int) {
	c.advances++
	c.cycles += n
	if c.cycles >= CyclesPerFrame {
		c.cycles -= CyclesPerFrame
		c.emit()
	}
}

type countingStore struct {
	loadBlob  []byte
	loadFound bool
	loadErr   error
	saves     [][]byte
}

func (s *countingStore) Load(string) ([]byte, bool, error) {
	return s.loadBlob, s.loadFound, s.loadErr
}

func (s *countingStore) Save(_ string, blob []byte) error {
	s.saves = append(s.saves, blob)
	return nil
}

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

func TestStartStepShutdown(t *testing.T) {
	core := &frameCore{}
	core.ram = []byte{1, 2, 3}
	store := &countingStore{}
	l := New(core, store, "game.gb", WithLogger(discard))

	if l.State() != Uninitialized {
		t.Fatalf("initial state %v", l.State())
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if l.State() != Running {
		t.Fatalf("state after Start %v", l.State())
	}
	for i := 0; i < 3; i++ {
		if err := l.Step(context.Background(), nil); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if core.advances != 3 || l.Sink().Frames() != 3 {
		t.Fatalf("advances=%d frames=%d, want 3/3", core.advances, l.Sink().Frames())
	}
	// The copy survives the engine scribbling over its own buffer.
	if px := l.Sink().Pixels(); px[0] != 3 || px[len(px)-1] != 3 {
		t.Fatalf("frame buffer holds %d..%d, want 3", px[0], px[len(px)-1])
	}

	if err := l.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if l.State() != Terminated {
		t.Fatalf("state after Shutdown %v", l.State())
	}
	if len(store.saves) != 1 || !bytes.Equal(store.saves[0], []byte{1, 2, 3}) {
		t.Fatalf("saves = %v", store.saves)
	}
	if core.closed != 1 {
		t.Fatalf("engine closed %d times", core.closed)
	}
	if i, j := indexOf(core.calls, "savedata"), indexOf(core.calls, "close"); i < 0 || i > j {
		t.Fatalf("save RAM not read before close: %v", core.calls)
	}
}

func TestShutdownIsSingleShot(t *testing.T) {
	core := &frameCore{}
	store := &countingStore{}
	l := New(core, store, "game.gb", WithLogger(discard))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := l.Shutdown(); err != nil {
			t.Fatalf("Shutdown %d: %v", i, err)
		}
	}
	if len(store.saves) != 1 || core.closed != 1 {
		t.Fatalf("saves=%d closes=%d, want 1/1", len(store.saves), core.closed)
	}
	before := len(core.calls)
	if err := l.Step(context.Background(), []input.KeyEvent{{Key: ebiten.KeyJ, Action: input.KeyPress}}); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Step after shutdown err = %v", err)
	}
	if len(core.calls) != before {
		t.Fatalf("engine called after termination: %v", core.calls[before:])
	}
}

func TestStepBeforeStart(t *testing.T) {
	l := New(&frameCore{}, &countingStore{}, "game.gb", WithLogger(discard))
	if err := l.Step(context.Background(), nil); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}

func TestInputRoutedBeforeAdvance(t *testing.T) {
	core := &frameCore{}
	l := New(core, &countingStore{}, "game.gb", WithLogger(discard))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	core.calls = nil
	events := []input.KeyEvent{
		{Key: ebiten.KeyJ, Action: input.KeyPress},
		{Key: ebiten.KeyF1, Action: input.KeyPress},
		{Key: ebiten.KeyEnter, Action: input.KeyPress},
		{Key: ebiten.KeyJ, Action: input.KeyRelease},
	}
	if err := l.Step(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	want := []string{"input:A/Press", "input:Start/Press", "input:A/Release", "advance"}
	if strings.Join(core.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v want %v", core.calls, want)
	}
}

func TestCycleEngineAdvancesUntilFrame(t *testing.T) {
	core := &cycleCore{}
	l := New(core, &countingStore{}, "game.gb", WithLogger(discard))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(context.Background(), nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := (CyclesPerFrame + DefaultCyclesPerStep - 1) / DefaultCyclesPerStep
	if core.advances != want {
		t.Fatalf("advances = %d, want %d", core.advances, want)
	}
	if l.Sink().Frames() != 1 {
		t.Fatalf("frames = %d", l.Sink().Frames())
	}
	// The next frame starts from the leftover cycles.
	if err := l.Step(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if l.Sink().Frames() != 2 {
		t.Fatalf("frames = %d", l.Sink().Frames())
	}
}

func TestCycleEngineCustomStep(t *testing.T) {
	core := &cycleCore{}
	l := New(core, &countingStore{}, "game.gb", WithLogger(discard), WithCyclesPerStep(CyclesPerFrame))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if core.advances != 1 {
		t.Fatalf("advances = %d, want 1", core.advances)
	}
}

func TestStepNoFrame(t *testing.T) {
	core := &frameCore{silent: true}
	l := New(core, &countingStore{}, "game.gb", WithLogger(discard), WithMaxAdvances(5))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(context.Background(), nil); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("err = %v, want ErrNoFrame", err)
	}
	if core.advances != 5 {
		t.Fatalf("advances = %d, want 5", core.advances)
	}
}

func TestStepBadFrameIsFatal(t *testing.T) {
	core := &frameCore{}
	core.geometry = 256
	l := New(core, &countingStore{}, "game.gb", WithLogger(discard))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(context.Background(), nil); !errors.Is(err, frame.ErrGeometry) {
		t.Fatalf("err = %v, want ErrGeometry", err)
	}
	if core.advances != 1 {
		t.Fatalf("kept advancing after a rejected frame: %d", core.advances)
	}
}

func TestStepCancelledContext(t *testing.T) {
	core := &frameCore{}
	store := &countingStore{}
	l := New(core, store, "game.gb", WithLogger(discard))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Step(ctx, nil); err != nil {
		t.Fatalf("Step with cancelled ctx: %v", err)
	}
	if core.advances != 0 {
		t.Fatalf("advanced %d times after cancellation", core.advances)
	}
	if err := l.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(store.saves) != 1 {
		t.Fatalf("interrupted session saved %d times", len(store.saves))
	}
}

func TestStartOpenFailure(t *testing.T) {
	core := &frameCore{}
	core.openErr = errors.New("bad rom")
	store := &countingStore{}
	l := New(core, store, "game.gb", WithLogger(discard))

	err := l.Start()
	if !errors.Is(err, ErrStartup) {
		t.Fatalf("err = %v, want ErrStartup", err)
	}
	if l.State() != Terminated || core.closed != 1 {
		t.Fatalf("state=%v closed=%d", l.State(), core.closed)
	}
	if err := l.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if len(store.saves) != 0 || core.closed != 1 {
		t.Fatalf("failed startup saved %d times, closed %d times", len(store.saves), core.closed)
	}
}

type inertCore struct{ fakeCore }

func TestStartRejectsEngineWithoutAdvance(t *testing.T) {
	core := &inertCore{}
	l := New(core, &countingStore{}, "game.gb", WithLogger(discard))
	if err := l.Start(); !errors.Is(err, ErrStartup) {
		t.Fatalf("err = %v", err)
	}
	if indexOf(core.calls, "open") >= 0 {
		t.Fatalf("engine opened anyway")
	}
}

func TestShutdownBeforeStartClosesWithoutSaving(t *testing.T) {
	core := &frameCore{}
	store := &countingStore{}
	l := New(core, store, "game.gb", WithLogger(discard))
	if err := l.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if core.closed != 1 || len(store.saves) != 0 {
		t.Fatalf("closed=%d saves=%d", core.closed, len(store.saves))
	}
}

// Scenario: no sidecar, play, close: exactly one game.gb.sav written with
// the engine's RAM.
func TestScenarioFirstRun(t *testing.T) {
	rom := filepath.Join(t.TempDir(), "game.gb")
	core := &frameCore{}
	core.ram = []byte{0, 128, 255, 7}
	l := New(core, save.NewStore(discard), rom, WithLogger(discard))

	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if len(core.injected) != 0 {
		t.Fatalf("save data injected without a sidecar")
	}
	for i := 0; i < 10; i++ {
		if err := l.Step(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := os.Stat(rom + ".sav"); !os.IsNotExist(err) {
		t.Fatalf("sidecar written during play: %v", err)
	}
	if err := l.Shutdown(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(rom + ".sav")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0\n128\n255\n7" {
		t.Fatalf("sidecar = %q", data)
	}
}

// Scenario: sidecar "10\n20\n255" is injected before the first frame.
func TestScenarioSaveInjectedBeforeFirstFrame(t *testing.T) {
	rom := filepath.Join(t.TempDir(), "game.gb")
	if err := os.WriteFile(rom+".sav", []byte("10\n20\n255"), 0o644); err != nil {
		t.Fatal(err)
	}
	core := &frameCore{}
	l := New(core, save.NewStore(discard), rom, WithLogger(discard))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(core.injected) != 1 || !bytes.Equal(core.injected[0], []byte{10, 20, 255}) {
		t.Fatalf("injected = %v", core.injected)
	}
	if i, j := indexOf(core.calls, "setsavedata"), indexOf(core.calls, "advance"); i < 0 || i > j {
		t.Fatalf("save injected after first advance: %v", core.calls)
	}
}

// Scenario: a malformed sidecar aborts startup and is left untouched.
func TestScenarioMalformedSave(t *testing.T) {
	rom := filepath.Join(t.TempDir(), "game.gb")
	bad := []byte("10\nlives\n255")
	if err := os.WriteFile(rom+".sav", bad, 0o644); err != nil {
		t.Fatal(err)
	}
	core := &frameCore{}
	core.ram = []byte{1}
	l := New(core, save.NewStore(discard), rom, WithLogger(discard))

	err := l.Start()
	if !errors.Is(err, ErrStartup) || !errors.Is(err, save.ErrMalformed) {
		t.Fatalf("err = %v, want ErrStartup wrapping ErrMalformed", err)
	}
	if len(core.injected) != 0 || core.advances != 0 {
		t.Fatalf("engine started with bad save: injected=%v advances=%d", core.injected, core.advances)
	}
	if err := l.Shutdown(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(rom + ".sav")
	if !bytes.Equal(data, bad) {
		t.Fatalf("malformed sidecar overwritten: %q", data)
	}
}

func TestFPSCounter(t *testing.T) {
	var f fpsCounter
	f.log = discard
	base := time.Unix(1000, 0)
	for i := 0; i <= 60; i++ {
		f.frame(base.Add(time.Duration(i) * time.Second / 60))
	}
	if f.last < 59 || f.last > 62 {
		t.Fatalf("fps = %.2f, want ~60", f.last)
	}
}

func TestLoopReportsFrameRate(t *testing.T) {
	tick := time.Unix(1000, 0)
	clock := func() time.Time {
		tick = tick.Add(time.Second / 50)
		return tick
	}
	l := New(&frameCore{}, &countingStore{}, "game.gb", WithLogger(discard), WithClock(clock))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	if l.FPS() != 0 {
		t.Fatalf("fps before any frame = %v", l.FPS())
	}
	for i := 0; i < 51; i++ {
		if err := l.Step(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := l.FPS(); got < 49 || got > 52 {
		t.Fatalf("fps = %.2f, want ~50", got)
	}
}
