// Package input turns host key events into Game Boy button transitions.
package input

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/joypad"
)

// KeyAction is the host-side key transition. Values follow GLFW's codes.
type KeyAction int

const (
	KeyRelease KeyAction = iota
	KeyPress
	KeyRepeat
)

// KeyEvent is one raw key transition as delivered by the window layer.
type KeyEvent struct {
	Key    ebiten.Key
	Action KeyAction
}

// ButtonSink receives forwarded button transitions. The emulation engine
// implements it.
type ButtonSink interface {
	Input(b joypad.Button, a joypad.Action)
}

// Router forwards recognised key events to a ButtonSink, one call per event.
// Unknown keys and actions are dropped silently.
type Router struct {
	sink ButtonSink
}

func NewRouter(sink ButtonSink) *Router {
	return &Router{sink: sink}
}

// Route forwards ev and reports whether it was recognised.
func (r *Router) Route(ev KeyEvent) bool {
	b, ok := ButtonForKey(ev.Key)
	if !ok {
		return false
	}
	a, ok := ActionFor(ev.Action)
	if !ok {
		return false
	}
	r.sink.Input(b, a)
	return true
}

// RouteAll routes events in order and returns how many were forwarded.
func (r *Router) RouteAll(events []KeyEvent) int {
	n := 0
	for _, ev := range events {
		if r.Route(ev) {
			n++
		}
	}
	return n
}

// ButtonForKey is the keyboard binding table.
func ButtonForKey(k ebiten.Key) (joypad.Button, bool) {
	switch k {
	case ebiten.KeyW:
		return joypad.Up, true
	case ebiten.KeyA:
		return joypad.Left, true
	case ebiten.KeyD:
		return joypad.Right, true
	case ebiten.KeyS:
		return joypad.Down, true
	case ebiten.KeyJ:
		return joypad.A, true
	case ebiten.KeyK:
		return joypad.B, true
	case ebiten.KeyEnter:
		return joypad.Start, true
	case ebiten.KeyShiftLeft:
		return joypad.Select, true
	}
	return 0, false
}

// ActionFor maps host transitions to button actions. Repeats are not
// transitions and are dropped.
func ActionFor(a KeyAction) (joypad.Action, bool) {
	switch a {
	case KeyPress:
		return joypad.Press, true
	case KeyRelease:
		return joypad.Release, true
	}
	return 0, false
}
