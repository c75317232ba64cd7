//go:build !solution

// Package table runs a dining session: N philosophers sharing one monitor.
package table

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OIS202/COMP346A3-Dining-Philosophers/monitor"
)

var (
	ErrExclusionViolated = errors.New("mutual exclusion violated")
	ErrAlreadyRun        = errors.New("table: session already run")
)

// Stats summarizes a finished session. Slices are indexed by philosopher id - 1.
type Stats struct {
	SessionID string          `json:"session_id"`
	Meals     []int           `json:"meals"`
	Talks     []int           `json:"talks"`
	Waited    []time.Duration `json:"waited"`
	Elapsed   time.Duration   `json:"elapsed"`
}

type Table struct {
	cfg     Config
	id      uuid.UUID
	mon     *monitor.Monitor
	phils   []*Philosopher
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *Metrics
	started int32
}

type Option func(*Table)

func WithClock(c clockwork.Clock) Option {
	return func(t *Table) {
		t.clock = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}

// WithMetrics attaches m as the monitor observer.
func WithMetrics(m *Metrics) Option {
	return func(t *Table) {
		t.metrics = m
	}
}

// New seats cfg.Philosophers philosophers around a fresh monitor.
func New(cfg Config, opts ...Option) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("table: session id: %w", err)
	}

	t := &Table{
		cfg:    cfg,
		id:     id,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("session", id.String()))

	monOpts := []monitor.Option{monitor.WithLogger(t.logger.Named("monitor"))}
	if t.metrics != nil {
		t.metrics.reset(cfg.Philosophers)
		monOpts = append(monOpts, monitor.WithObserver(t.metrics))
	}
	t.mon, err = monitor.New(cfg.Philosophers, monOpts...)
	if err != nil {
		return nil, err
	}

	t.phils = make([]*Philosopher, cfg.Philosophers)
	for i := range t.phils {
		pid := i + 1
		t.phils[i] = &Philosopher{
			id:      pid,
			mon:     t.mon,
			cfg:     cfg,
			clock:   t.clock,
			rnd:     rand.New(rand.NewSource(cfg.Seed + int64(pid))),
			logger:  t.logger.With(zap.Int("philosopher", pid)),
			metrics: t.metrics,
		}
	}
	return t, nil
}

func (t *Table) SessionID() string {
	return t.id.String()
}

// Monitor returns the monitor shared by the philosophers.
func (t *Table) Monitor() *monitor.Monitor {
	return t.mon
}

// Run starts every philosopher and waits until all of them finish their rounds.
// A table can be run only once.
func (t *Table) Run() (Stats, error) {
	if !atomic.CompareAndSwapInt32(&t.started, 0, 1) {
		return Stats{}, ErrAlreadyRun
	}

	t.logger.Info("session started",
		zap.Int("philosophers", t.cfg.Philosophers),
		zap.Int("rounds", t.cfg.Rounds),
	)
	start := t.clock.Now()

	var g errgroup.Group
	for _, p := range t.phils {
		g.Go(p.run)
	}
	err := g.Wait()

	stats := Stats{
		SessionID: t.id.String(),
		Meals:     make([]int, len(t.phils)),
		Talks:     make([]int, len(t.phils)),
		Waited:    make([]time.Duration, len(t.phils)),
		Elapsed:   t.clock.Since(start),
	}
	for i, p := range t.phils {
		stats.Meals[i] = p.meals
		stats.Talks[i] = p.talks
		stats.Waited[i] = p.waited
	}

	if err != nil {
		t.logger.Error("session failed", zap.Error(err))
		return stats, err
	}
	t.logger.Info("session finished",
		zap.Ints("meals", stats.Meals),
		zap.Ints("talks", stats.Talks),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}
