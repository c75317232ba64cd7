package monitor

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = time.Second
	tick    = time.Millisecond
)

func newMonitor(t *testing.T, n int, opts ...Option) *Monitor {
	t.Helper()

	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	m, err := New(n, opts...)
	require.NoError(t, err)
	return m
}

// pickUpAsync calls PickUp in a goroutine and waits until the philosopher is
// either eating or parked on the condition.
func pickUpAsync(t *testing.T, m *Monitor, id int) <-chan struct{} {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.PickUp(id)
	}()
	require.Eventually(t, func() bool {
		return m.State(id) != Thinking
	}, waitFor, tick)
	return done
}

func requireBlocked(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
		t.Fatal("call returned while it should be blocked")
	case <-time.After(50 * time.Millisecond):
	}
}

func requireDone(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("call is still blocked")
	}
}

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		n     int
		isErr bool
	}{
		{n: -3, isErr: true},
		{n: 0, isErr: true},
		{n: 1},
		{n: 5},
	} {
		t.Run(fmt.Sprint(tc.n), func(t *testing.T) {
			m, err := New(tc.n)
			if tc.isErr {
				require.ErrorIs(t, err, ErrInvalidCount)
				require.Nil(t, m)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.n, m.Size())

			want := Snapshot{
				States:     make([]State, tc.n),
				Chopsticks: make([]bool, tc.n),
				Meals:      make([]int, tc.n),
			}
			for i := range want.Chopsticks {
				want.Chopsticks[i] = true
			}
			if diff := cmp.Diff(want, m.Snapshot()); diff != "" {
				t.Errorf("initial snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPickUp_NonAdjacent(t *testing.T) {
	m := newMonitor(t, 5)

	m.PickUp(1)
	m.PickUp(3)
	require.Equal(t, Eating, m.State(1))
	require.Equal(t, Eating, m.State(3))
	require.Equal(t, 1, m.Meals(1))
	require.Equal(t, 1, m.Meals(3))

	want := []bool{false, false, false, false, true}
	require.Equal(t, want, m.Snapshot().Chopsticks)

	// Философу 2 нужны палочки 1 и 2: одна у первого, другая у третьего.
	done := pickUpAsync(t, m, 2)
	requireBlocked(t, done)
	require.Equal(t, Hungry, m.State(2))

	m.PutDown(1)
	requireBlocked(t, done)
	require.Equal(t, 0, m.Meals(2))

	m.PutDown(3)
	requireDone(t, done)
	require.Equal(t, Eating, m.State(2))
	require.Equal(t, 1, m.Meals(2))

	m.PutDown(2)
}

func TestPickUp_SinglePhilosopher(t *testing.T) {
	m := newMonitor(t, 1)

	left, right := m.Neighbors(1)
	require.Equal(t, 1, left)
	require.Equal(t, 1, right)

	for i := 1; i <= 3; i++ {
		m.PickUp(1)
		require.Equal(t, Eating, m.State(1))
		require.Equal(t, []bool{false}, m.Snapshot().Chopsticks)
		require.Equal(t, i, m.Meals(1))

		m.PutDown(1)
		require.Equal(t, []bool{true}, m.Snapshot().Chopsticks)
	}
}

func TestPickUp_StarvationGuard(t *testing.T) {
	m := newMonitor(t, 3)

	m.PickUp(1)
	m.PutDown(1)

	// Первый уже ел, а соседи ещё нет: палочки свободны, но его не пускают.
	require.False(t, m.TryPickUp(1))
	require.Equal(t, Thinking, m.State(1))
	require.Equal(t, 1, m.Meals(1))

	done := pickUpAsync(t, m, 1)
	requireBlocked(t, done)

	m.PickUp(2)
	m.PutDown(2)
	requireBlocked(t, done)

	m.PickUp(3)
	requireBlocked(t, done)
	m.PutDown(3)

	requireDone(t, done)
	require.Equal(t, 2, m.Meals(1))
	m.PutDown(1)
}

func TestPickUp_IgnoresSpuriousWakeup(t *testing.T) {
	m := newMonitor(t, 2)

	m.PickUp(1)
	done := pickUpAsync(t, m, 2)

	for i := 0; i < 10; i++ {
		m.mu.Lock()
		m.canEat.Broadcast()
		m.mu.Unlock()
	}
	requireBlocked(t, done)

	m.PutDown(1)
	requireDone(t, done)
	m.PutDown(2)
}

func TestTryPickUp(t *testing.T) {
	m := newMonitor(t, 4)

	require.True(t, m.TryPickUp(2))
	require.False(t, m.TryPickUp(1))
	require.False(t, m.TryPickUp(3))
	require.True(t, m.TryPickUp(4))

	s := m.Snapshot()
	require.Equal(t, []State{Thinking, Eating, Thinking, Eating}, s.States)
	require.Equal(t, []int{0, 1, 0, 1}, s.Meals)
	require.Equal(t, []bool{false, false, false, false}, s.Chopsticks)

	m.PutDown(2)
	m.PutDown(4)
}

func TestContractViolations(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    func(m *Monitor)
	}{
		{name: "pickup-zero", f: func(m *Monitor) { m.PickUp(0) }},
		{name: "pickup-overflow", f: func(m *Monitor) { m.PickUp(4) }},
		{name: "putdown-negative", f: func(m *Monitor) { m.PutDown(-1) }},
		{name: "putdown-thinking", f: func(m *Monitor) { m.PutDown(2) }},
		{name: "pickup-twice", f: func(m *Monitor) {
			m.PickUp(1)
			m.PickUp(1)
		}},
		{name: "endtalk-free", f: func(m *Monitor) { m.EndTalk() }},
		{name: "state-overflow", f: func(m *Monitor) { m.State(7) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := newMonitor(t, 3)
			require.Panics(t, func() { tc.f(m) })
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "thinking", Thinking.String())
	assert.Equal(t, "hungry", Hungry.String())
	assert.Equal(t, "eating", Eating.String())
	assert.Equal(t, "State(42)", State(42).String())

	data, err := json.Marshal(Snapshot{States: []State{Eating, Hungry}, Chopsticks: []bool{false, true}, Meals: []int{1, 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"states":["eating","hungry"],"chopsticks":[false,true],"meals":[1,0],"talking":false}`, string(data))
}

func TestRequestTalk_Uncontended(t *testing.T) {
	m := newMonitor(t, 5)
	require.False(t, m.Talking())

	// Захват без ожидания тоже выставляет флаг.
	m.RequestTalk()
	require.True(t, m.Talking())

	m.EndTalk()
	require.False(t, m.Talking())
}

func TestRequestTalk_Contended(t *testing.T) {
	m := newMonitor(t, 5)
	m.RequestTalk()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RequestTalk()
	}()
	requireBlocked(t, done)

	m.EndTalk()
	requireDone(t, done)
	require.True(t, m.Talking())

	m.EndTalk()
	require.False(t, m.Talking())
}

func TestRequestTalk_SingleSpeaker(t *testing.T) {
	const (
		speakers = 8
		rounds   = 200
	)
	m := newMonitor(t, speakers)

	var (
		current int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < speakers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				m.RequestTalk()
				c := atomic.AddInt32(&current, 1)
				for {
					prev := atomic.LoadInt32(&maxSeen)
					if c <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, c) {
						break
					}
				}
				atomic.AddInt32(&current, -1)
				m.EndTalk()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxSeen)
	require.False(t, m.Talking())
}

// auditObserver checks neighbour exclusion and meal skew on every admission.
// Callbacks run under the monitor lock, so no extra synchronization is needed.
type auditObserver struct {
	n          int
	eating     []bool
	meals      []int
	violations []string
}

func newAuditObserver(n int) *auditObserver {
	return &auditObserver{n: n, eating: make([]bool, n), meals: make([]int, n)}
}

func (a *auditObserver) Hungry(int) {}

func (a *auditObserver) Eating(id int, meals int) {
	i := id - 1
	left, right := (i-1+a.n)%a.n, (i+1)%a.n
	if a.n > 1 && (a.eating[left] || a.eating[right]) {
		a.violations = append(a.violations, fmt.Sprintf("philosopher %d eats next to an eating neighbour", id))
	}
	if meals-a.meals[left] > 1 || meals-a.meals[right] > 1 {
		a.violations = append(a.violations, fmt.Sprintf("philosopher %d is %d meals ahead", id, meals-min(a.meals[left], a.meals[right])))
	}
	a.eating[i] = true
	a.meals[i] = meals
}

func (a *auditObserver) Thinking(id int, _ State) {
	a.eating[id-1] = false
}

func (a *auditObserver) Talk(bool) {}

func TestMonitor_Stress(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			const rounds = 300

			audit := newAuditObserver(n)
			m, err := New(n, WithObserver(audit))
			require.NoError(t, err)

			var wg sync.WaitGroup
			for id := 1; id <= n; id++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for r := 0; r < rounds; r++ {
						m.PickUp(id)
						m.PutDown(id)
						if r%10 == 0 {
							m.RequestTalk()
							m.EndTalk()
						}
					}
				}(id)
			}
			wg.Wait()

			require.Empty(t, audit.violations)

			s := m.Snapshot()
			for id := 1; id <= n; id++ {
				require.Equal(t, rounds, s.Meals[id-1], "philosopher %d", id)
				require.Equal(t, Thinking, s.States[id-1])
				require.True(t, s.Chopsticks[id-1])
			}
			require.False(t, s.Talking)
		})
	}
}
