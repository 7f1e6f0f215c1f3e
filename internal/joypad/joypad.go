// Package joypad defines the Game Boy button set shared by the input router
// and the emulation engine.
package joypad

// Button identifies one of the eight Game Boy buttons.
type Button uint8

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// NumButtons is the size of the button set.
const NumButtons = 8

func (b Button) String() string {
	switch b {
	case Right:
		return "Right"
	case Left:
		return "Left"
	case Up:
		return "Up"
	case Down:
		return "Down"
	case A:
		return "A"
	case B:
		return "B"
	case Select:
		return "Select"
	case Start:
		return "Start"
	default:
		return "Unknown"
	}
}

// Action is a button transition.
type Action uint8

const (
	Release Action = iota
	Press
)

func (a Action) String() string {
	if a == Press {
		return "Press"
	}
	return "Release"
}

// State is a pressed-button bitmask indexed by Button.
type State uint8

// Apply returns s updated for one button transition.
func (s State) Apply(b Button, a Action) State {
	if b >= NumButtons {
		return s
	}
	if a == Press {
		return s | 1<<b
	}
	return s &^ (1 << b)
}

// Pressed reports whether b is held in s.
func (s State) Pressed(b Button) bool {
	return b < NumButtons && s&(1<<b) != 0
}
