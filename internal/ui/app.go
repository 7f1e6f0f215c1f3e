package ui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/frame"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/input"
)

// Session is the emulator loop as seen by the window.
type Session interface {
	Start() error
	Step(ctx context.Context, events []input.KeyEvent) error
	Shutdown() error
	Sink() *frame.Sink
	ROMPath() string
	FPS() float64
}

// App is the ebiten game driving one Session.
type App struct {
	ctx  context.Context
	cfg  Config
	s    Session
	log  *slog.Logger
	host host

	started bool
	done    bool
	events  []input.KeyEvent
	tex     *ebiten.Image
	rgba    []byte
	shown   float64 // frame rate currently in the title
}

// NewApp wires a session to the window. ctx is the interrupt context: once
// it is cancelled the next tick shuts the session down like a window close.
func NewApp(ctx context.Context, cfg Config, s Session, log *slog.Logger) *App {
	cfg.Defaults()
	if log == nil {
		log = slog.Default()
	}
	return &App{ctx: ctx, cfg: cfg, s: s, log: log, host: &ebitenHost{}}
}

// Run opens the window and blocks until it is closed or a fatal error
// stops the loop.
func (a *App) Run() error {
	ebiten.SetWindowTitle(a.cfg.Title)
	ebiten.SetWindowSize(a.cfg.Width, a.cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetVsyncEnabled(true)
	ebiten.SetTPS(ebiten.SyncWithFPS)
	return ebiten.RunGame(a)
}

func (a *App) Update() error {
	if a.done {
		return ebiten.Termination
	}
	if !a.started {
		a.started = true
		if err := a.s.Start(); err != nil {
			a.done = true
			return err
		}
	}

	if a.host.closeRequested() || a.ctx.Err() != nil {
		a.done = true
		if a.ctx.Err() != nil {
			a.log.Info("interrupted")
		}
		if err := a.s.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ebiten.Termination
	}

	a.events = a.host.keyEvents(a.events[:0])
	if a.host.screenshotRequested() {
		if name, err := a.saveScreenshot(); err != nil {
			a.log.Error("screenshot", "err", err)
		} else {
			a.log.Info("screenshot saved", "path", name)
		}
	}
	if err := a.s.Step(a.ctx, a.events); err != nil {
		a.done = true
		return err
	}
	if fps := a.s.FPS(); fps != a.shown {
		a.shown = fps
		a.host.setTitle(fmt.Sprintf("%s - %.1f fps", a.cfg.Title, fps))
	}
	return nil
}

// Draw stretches the 160x144 frame over the whole window, independently on
// each axis, without smoothing.
func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(frame.Width, frame.Height)
	}
	a.rgba = a.s.Sink().RGBA(a.rgba)
	a.tex.WritePixels(a.rgba)

	screen.DrawImage(a.tex, drawOptions(screen.Bounds().Dx(), screen.Bounds().Dy()))
}

// drawOptions maps the frame onto a w x h screen with nearest-neighbour
// sampling so the pixel grid stays sharp at any size.
func drawOptions(w, h int) *ebiten.DrawImageOptions {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(w)/frame.Width, float64(h)/frame.Height)
	op.Filter = ebiten.FilterNearest
	return op
}

// Layout keeps the screen the same size as the window so the stretch is
// done in window pixels.
func (a *App) Layout(outW, outH int) (int, int) { return outW, outH }
