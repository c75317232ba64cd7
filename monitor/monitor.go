//go:build !solution

// Package monitor coordinates dining philosophers around a ring of chopsticks.
//
// Philosopher i (1-indexed) eats with chopsticks i-1 and i mod N (0-indexed).
// All state lives inside a single Monitor and every transition happens under
// its lock, so independent Monitors never interfere with each other.
package monitor

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrInvalidCount = errors.New("number of philosophers must be positive")

// A Monitor serializes PickUp/PutDown and talk requests of N philosophers.
//
// A hungry philosopher is admitted only when both of its chopsticks are free
// and it has not eaten more times than either neighbour. The second rule keeps
// the meal counters of neighbours within one of each other, so nobody starves.
//
// Waiting is never abandoned: there is no timeout and no cancellation.
type Monitor struct {
	mu      sync.Mutex
	canEat  *sync.Cond
	canTalk *sync.Cond

	n          int
	states     []State
	chopsticks []bool // true - палочка свободна
	meals      []int
	talking    bool

	logger   *zap.Logger
	observer Observer
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger makes the monitor log every transition at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// WithObserver registers o for state transitions.
func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		m.observer = o
	}
}

// New creates a Monitor for n philosophers, all thinking, with every chopstick free.
func New(n int, opts ...Option) (*Monitor, error) {
	if n <= 0 {
		return nil, fmt.Errorf("monitor: %w: got %d", ErrInvalidCount, n)
	}

	m := &Monitor{
		n:          n,
		states:     make([]State, n),
		chopsticks: make([]bool, n),
		meals:      make([]int, n),
		logger:     zap.NewNop(),
		observer:   nopObserver{},
	}
	for i := range m.chopsticks {
		m.chopsticks[i] = true
	}
	m.canEat = sync.NewCond(&m.mu)
	m.canTalk = sync.NewCond(&m.mu)

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Size returns the number of philosophers.
func (m *Monitor) Size() int {
	return m.n
}

// PickUp blocks until philosopher id may eat, then takes both of its chopsticks.
// On return the philosopher is eating and its meal counter is incremented.
func (m *Monitor) PickUp(id int) {
	m.checkID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.becomeHungry(id)
	// Предикат перепроверяется после каждого пробуждения: Broadcast будит всех,
	// и палочки может забрать кто-то другой раньше нас.
	for !m.canAdmit(id) {
		m.canEat.Wait()
	}
	m.admit(id)
}

// TryPickUp is the non-blocking form of PickUp. It reports whether philosopher id
// was admitted; when it was not, the philosopher stays thinking.
func (m *Monitor) TryPickUp(id int) bool {
	m.checkID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.becomeHungry(id)
	if !m.canAdmit(id) {
		m.states[id-1] = Thinking
		m.observer.Thinking(id, Hungry)
		return false
	}
	m.admit(id)
	return true
}

// PutDown releases both chopsticks of philosopher id and wakes every hungry
// philosopher so each one can re-evaluate its own admission condition.
// It panics if the philosopher is not eating.
func (m *Monitor) PutDown(id int) {
	m.checkID(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states[id-1] != Eating {
		panic(fmt.Sprintf("monitor: philosopher %d puts down chopsticks while %s", id, m.states[id-1]))
	}

	left, right := m.chopsticksOf(id)
	m.chopsticks[left] = true
	m.chopsticks[right] = true
	m.states[id-1] = Thinking
	m.observer.Thinking(id, Eating)
	m.logger.Debug("put down",
		zap.Int("philosopher", id),
		zap.Int("left", left),
		zap.Int("right", right),
	)

	m.canEat.Broadcast()
}

// RequestTalk blocks until the caller holds the sole speaking rights.
// Every grant sets the talk lock, whether or not the caller had to wait.
func (m *Monitor) RequestTalk() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.talking {
		m.canTalk.Wait()
	}
	m.talking = true
	m.observer.Talk(true)
	m.logger.Debug("talk granted")
}

// EndTalk releases the speaking rights and wakes every waiting speaker.
// It panics if nobody is talking.
func (m *Monitor) EndTalk() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.talking {
		panic("monitor: EndTalk without matching RequestTalk")
	}
	m.talking = false
	m.observer.Talk(false)
	m.logger.Debug("talk released")

	m.canTalk.Broadcast()
}

// State returns the current state of philosopher id.
func (m *Monitor) State(id int) State {
	m.checkID(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id-1]
}

// Meals returns how many times philosopher id has been admitted to eat.
func (m *Monitor) Meals(id int) int {
	m.checkID(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meals[id-1]
}

// Talking reports whether somebody currently holds the speaking rights.
func (m *Monitor) Talking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.talking
}

// Snapshot copies the whole monitor state atomically.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		States:     make([]State, m.n),
		Chopsticks: make([]bool, m.n),
		Meals:      make([]int, m.n),
		Talking:    m.talking,
	}
	copy(s.States, m.states)
	copy(s.Chopsticks, m.chopsticks)
	copy(s.Meals, m.meals)
	return s
}

// Neighbors returns the ids of the left and right neighbours of philosopher id.
// With one philosopher both are the philosopher itself.
func (m *Monitor) Neighbors(id int) (left, right int) {
	m.checkID(id)
	return (id-2+m.n)%m.n + 1, id%m.n + 1
}

func (m *Monitor) checkID(id int) {
	if id < 1 || id > m.n {
		panic(fmt.Sprintf("monitor: philosopher id %d out of range [1, %d]", id, m.n))
	}
}

// chopsticksOf returns 0-based indices of the chopsticks of philosopher id.
// For n == 1 they coincide.
func (m *Monitor) chopsticksOf(id int) (left, right int) {
	return id - 1, id % m.n
}

func (m *Monitor) becomeHungry(id int) {
	if s := m.states[id-1]; s != Thinking {
		panic(fmt.Sprintf("monitor: philosopher %d picks up chopsticks while %s", id, s))
	}
	m.states[id-1] = Hungry
	m.observer.Hungry(id)
}

// canAdmit must be called with mu held.
func (m *Monitor) canAdmit(id int) bool {
	left, right := m.chopsticksOf(id)
	if !m.chopsticks[left] || !m.chopsticks[right] {
		return false
	}
	return !m.starving(id)
}

// starving reports whether a neighbour of id has eaten fewer times than id.
// Such a neighbour gets priority.
func (m *Monitor) starving(id int) bool {
	own := m.meals[id-1]
	leftMeals := m.meals[(id-2+m.n)%m.n]
	rightMeals := m.meals[id%m.n]
	return own > leftMeals || own > rightMeals
}

func (m *Monitor) admit(id int) {
	left, right := m.chopsticksOf(id)
	m.chopsticks[left] = false
	m.chopsticks[right] = false
	m.states[id-1] = Eating
	m.meals[id-1]++

	m.observer.Eating(id, m.meals[id-1])
	m.logger.Debug("picked up",
		zap.Int("philosopher", id),
		zap.Int("left", left),
		zap.Int("right", right),
		zap.Int("meals", m.meals[id-1]),
	)
}
