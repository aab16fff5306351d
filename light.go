package trafficlight

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fujiwara/trafficlight/handoff"
)

// ErrAlreadyStarted is returned by Simulate when the light is already cycling.
var ErrAlreadyStarted = errors.New("traffic light is already simulating")

// TrafficLight cycles between red and green at randomized intervals in a
// background goroutine and publishes every transition to its waiters.
type TrafficLight struct {
	config   *LightConfig
	clock    clock.Clock
	newRand  func() *rand.Rand
	messages *handoff.Queue[Phase]

	current        atomic.Value // Phase
	lastTransition atomic.Pointer[time.Time]

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a TrafficLight.
type Option func(*TrafficLight)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(t *TrafficLight) {
		t.clock = c
	}
}

// WithRand sets the factory of the random source used by each cycling loop.
func WithRand(f func() *rand.Rand) Option {
	return func(t *TrafficLight) {
		t.newRand = f
	}
}

// NewTrafficLight returns a red light that does not cycle until Simulate is
// called. A nil cfg uses DefaultLightConfig.
func NewTrafficLight(cfg *LightConfig, opts ...Option) *TrafficLight {
	if cfg == nil {
		cfg = DefaultLightConfig()
	}
	if cfg.PollInterval <= 0 {
		c := *cfg
		c.PollInterval = DefaultPollInterval
		cfg = &c
	}
	t := &TrafficLight{
		config:   cfg,
		messages: handoff.New[Phase](),
		done:     make(chan struct{}),
	}
	t.current.Store(PhaseRed)
	for _, opt := range opts {
		opt(t)
	}
	if t.clock == nil {
		// use the real clock.
		t.clock = clock.New()
	}
	if t.newRand == nil {
		t.newRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	return t
}

// CurrentPhase returns the latest published phase without blocking. It is a
// relaxed snapshot: a transition may be in flight while it is read.
func (t *TrafficLight) CurrentPhase() Phase {
	return t.current.Load().(Phase)
}

// LastTransition returns the clock time of the latest phase change, or the
// zero time if the light has not changed yet.
func (t *TrafficLight) LastTransition() time.Time {
	if p := t.lastTransition.Load(); p != nil {
		return *p
	}
	return time.Time{}
}

// Simulate starts the cycling loop and returns immediately. The loop runs
// until ctx is done or Stop is called. Only the first call starts a loop.
func (t *TrafficLight) Simulate(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	go t.cycleThroughPhases(ctx)
	return nil
}

// Stop cancels the cycling loop and waits for it to exit. It is a no-op if
// Simulate was never called.
func (t *TrafficLight) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-t.done
}

// Done is closed when the cycling loop has exited.
func (t *TrafficLight) Done() <-chan struct{} {
	return t.done
}

// WaitForGreen blocks until the light turns green after the call begins, or
// until ctx is done.
func (t *TrafficLight) WaitForGreen(ctx context.Context) error {
	// a transition nobody was waiting for is history.
	t.messages.Discard()
	for {
		p, err := t.messages.Receive(ctx)
		if err != nil {
			return err
		}
		if p == PhaseGreen {
			return nil
		}
	}
}

func (t *TrafficLight) cycleThroughPhases(ctx context.Context) {
	defer close(t.done)
	log := logger.With("module", "trafficlight")

	rnd := t.newRand()
	cycle := t.drawCycle(rnd)
	start := t.clock.Now()
	log.Debug("cycling started", "phase", t.CurrentPhase(), "cycle", cycle.String())

	for {
		select {
		case <-ctx.Done():
			log.Debug("cycling stopped", "phase", t.CurrentPhase())
			return
		case <-t.clock.After(t.config.PollInterval):
		}
		now := t.clock.Now()
		if now.Sub(start).Truncate(time.Second) <= cycle {
			continue
		}
		prev := t.CurrentPhase()
		next := prev.Next()
		t.current.Store(next)
		t.lastTransition.Store(&now)
		t.messages.Send(next)

		start = now
		cycle = t.drawCycle(rnd)
		log.Info("phase changed", "from", prev, "to", next, "next_cycle", cycle.String())
	}
}

// drawCycle picks a whole number of seconds uniformly from the configured
// [MinCycle, MaxCycle] range.
func (t *TrafficLight) drawCycle(rnd *rand.Rand) time.Duration {
	lo := t.config.MinCycle.Truncate(time.Second)
	hi := t.config.MaxCycle.Truncate(time.Second)
	if hi <= lo {
		return lo
	}
	n := int64((hi-lo)/time.Second) + 1
	return lo + time.Duration(rnd.Int63n(n))*time.Second
}
