package trafficlight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordHook struct {
	name string
	err  error

	mu     sync.Mutex
	phases []Phase
}

func (h *recordHook) Name() string { return h.name }

func (h *recordHook) Run(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phases = append(h.phases, phaseFromContext(ctx))
	return h.err
}

func (h *recordHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.phases)
}

func TestCrossingRunsHooksOnGreen(t *testing.T) {
	tl, _ := newTestLight(t, 1)
	ok := &recordHook{name: "ok"}
	failing := &recordHook{name: "failing", err: errors.New("boom")}
	c := &Crossing{name: "main", light: tl, hooks: []Hook{failing, ok}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for i := 1; i <= 2; i++ {
		require.Eventually(t, func() bool { return tl.messages.Waiting() == 1 }, time.Second, time.Millisecond)
		tl.messages.Send(PhaseRed)
		tl.messages.Send(PhaseGreen)
		want := i
		require.Eventually(t, func() bool { return ok.count() == want }, time.Second, time.Millisecond)
	}
	require.Equal(t, 2, failing.count(), "a failing hook must not stop the others")
	require.Equal(t, []Phase{PhaseGreen, PhaseGreen}, ok.phases)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("crossing did not stop")
	}
}

func TestCrossingCrossJoinsErrors(t *testing.T) {
	e1, e2 := errors.New("first"), errors.New("second")
	c := &Crossing{name: "x", hooks: []Hook{
		&recordHook{name: "a", err: e1},
		&recordHook{name: "b"},
		&recordHook{name: "c", err: e2},
	}}
	err := c.Cross(withPhase(context.Background(), PhaseGreen))
	require.ErrorIs(t, err, e1)
	require.ErrorIs(t, err, e2)
	require.NoError(t, (&Crossing{name: "empty"}).Cross(context.Background()))
}

type errWaiter struct{ err error }

func (w errWaiter) WaitForGreen(context.Context) error { return w.err }

func TestCrossingReturnsWaitError(t *testing.T) {
	e := errors.New("broken light")
	c := &Crossing{name: "x", light: errWaiter{err: e}}
	require.ErrorIs(t, c.Run(context.Background()), e)
}

func TestNewCrossing(t *testing.T) {
	tl, _ := newTestLight(t, 1)
	c, err := NewCrossing(&CrossingConfig{
		Name: "main",
		Hooks: []*HookConfig{
			{Name: "cmd", Timeout: time.Second, Command: &CommandHookConfig{Run: "true"}},
			{Name: "tcp", Timeout: time.Second, TCP: &TCPHookConfig{Host: "localhost", Port: "9"}},
		},
	}, tl)
	require.NoError(t, err)
	require.Equal(t, "main", c.Name())
	require.Len(t, c.hooks, 2)
	require.IsType(t, &CommandHook{}, c.hooks[0])
	require.IsType(t, &TCPHook{}, c.hooks[1])

	_, err = NewCrossing(&CrossingConfig{
		Name:  "bad",
		Hooks: []*HookConfig{{Name: "none"}},
	}, tl)
	require.Error(t, err)
}
