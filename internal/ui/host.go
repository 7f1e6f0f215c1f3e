package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/input"
)

// host is the per-tick view of the window that App needs. The ebiten
// implementation is swapped for a fake in tests.
type host interface {
	closeRequested() bool
	// keyEvents appends this tick's key transitions to dst.
	keyEvents(dst []input.KeyEvent) []input.KeyEvent
	screenshotRequested() bool
	setTitle(title string)
}

type ebitenHost struct {
	keys []ebiten.Key
}

func (h *ebitenHost) closeRequested() bool { return ebiten.IsWindowBeingClosed() }

func (h *ebitenHost) setTitle(title string) { ebiten.SetWindowTitle(title) }

func (h *ebitenHost) screenshotRequested() bool {
	return inpututil.IsKeyJustPressed(ebiten.KeyF12)
}

// keyEvents polls key state once per tick. The pressed and released sets
// are disjoint, and a tap shorter than one tick is not seen at all.
func (h *ebitenHost) keyEvents(dst []input.KeyEvent) []input.KeyEvent {
	h.keys = inpututil.AppendJustPressedKeys(h.keys[:0])
	for _, k := range h.keys {
		dst = append(dst, input.KeyEvent{Key: k, Action: input.KeyPress})
	}
	h.keys = inpututil.AppendJustReleasedKeys(h.keys[:0])
	for _, k := range h.keys {
		dst = append(dst, input.KeyEvent{Key: k, Action: input.KeyRelease})
	}
	return dst
}
