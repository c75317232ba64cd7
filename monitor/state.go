//go:build !solution

package monitor

import "fmt"

// State is what a philosopher is currently doing.
type State int

const (
	Thinking State = iota
	Hungry
	Eating
)

func (s State) String() string {
	switch s {
	case Thinking:
		return "thinking"
	case Hungry:
		return "hungry"
	case Eating:
		return "eating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent copy of the monitor state taken under the monitor lock.
// Slices are indexed from 0: philosopher id i is at position i-1.
type Snapshot struct {
	States     []State `json:"states"`
	Chopsticks []bool  `json:"chopsticks"`
	Meals      []int   `json:"meals"`
	Talking    bool    `json:"talking"`
}

// Observer receives state transitions. Callbacks run under the monitor lock,
// so they must be fast and must not call back into the monitor.
type Observer interface {
	Hungry(id int)
	Eating(id int, meals int)
	// Thinking is called after PutDown (from Eating) and after a refused TryPickUp (from Hungry).
	Thinking(id int, from State)
	Talk(held bool)
}

type nopObserver struct{}

func (nopObserver) Hungry(int) {}
func (nopObserver) Eating(int, int) {}
func (nopObserver) Thinking(int, State) {}
func (nopObserver) Talk(bool) {}
