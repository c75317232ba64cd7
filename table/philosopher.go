//go:build !solution

package table

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/OIS202/COMP346A3-Dining-Philosophers/monitor"
)

// Philosopher is one actor of the session. It alternates between thinking,
// eating and, now and then, talking, always going through the monitor.
type Philosopher struct {
	id      int
	mon     *monitor.Monitor
	cfg     Config
	clock   clockwork.Clock
	rnd     *rand.Rand
	logger  *zap.Logger
	metrics *Metrics

	meals  int
	talks  int
	waited time.Duration
}

// run never leaves the loop early: a philosopher that stops eating would keep
// its neighbours behind the starvation guard forever.
func (p *Philosopher) run() error {
	var violation error

	for round := 1; round <= p.cfg.Rounds; round++ {
		p.sleep(p.cfg.ThinkTime)

		start := p.clock.Now()
		p.mon.PickUp(p.id)
		p.observeWait(p.clock.Since(start))
		p.meals++
		p.logger.Debug("eating", zap.Int("round", round))

		if p.cfg.Verify {
			if err := p.audit(); err != nil && violation == nil {
				violation = err
			}
		}
		p.sleep(p.cfg.EatTime)
		p.mon.PutDown(p.id)

		if p.rnd.Float64() < p.cfg.TalkChance {
			p.talk()
		}
	}

	p.logger.Debug("done",
		zap.Int("meals", p.meals),
		zap.Int("talks", p.talks),
		zap.Duration("waited", p.waited),
	)
	return violation
}

func (p *Philosopher) talk() {
	p.mon.RequestTalk()
	p.talks++
	p.logger.Debug("talking")
	p.sleep(p.cfg.TalkTime)
	p.mon.EndTalk()
}

// audit checks, while p is eating, that it holds both chopsticks and
// that no neighbour eats at the same time.
func (p *Philosopher) audit() error {
	s := p.mon.Snapshot()
	n := len(s.States)

	left, right := p.id-1, p.id%n
	if s.States[p.id-1] != monitor.Eating || s.Chopsticks[left] || s.Chopsticks[right] {
		return fmt.Errorf("%w: philosopher %d eats without both chopsticks", ErrExclusionViolated, p.id)
	}
	ln, rn := p.mon.Neighbors(p.id)
	for _, nb := range []int{ln, rn} {
		if nb != p.id && s.States[nb-1] == monitor.Eating {
			return fmt.Errorf("%w: philosophers %d and %d eat together", ErrExclusionViolated, p.id, nb)
		}
	}
	return nil
}

func (p *Philosopher) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	p.clock.Sleep(d)
}

func (p *Philosopher) observeWait(d time.Duration) {
	p.waited += d
	if p.metrics != nil {
		p.metrics.observeWait(d)
	}
}
