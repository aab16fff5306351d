package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type greenWaiter interface {
	WaitForGreen(ctx context.Context) error
}

// Crossing waits for the light to turn green and runs its hooks each time
// it does. When several crossings share one light, a green transition
// releases only one of them.
type Crossing struct {
	name  string
	light greenWaiter
	hooks []Hook
}

func NewCrossing(cfg *CrossingConfig, light greenWaiter) (*Crossing, error) {
	c := &Crossing{
		name:  cfg.Name,
		light: light,
	}
	for i, hc := range cfg.Hooks {
		h, err := NewHook(hc)
		if err != nil {
			return nil, fmt.Errorf("crossing %s hook %d: %w", cfg.Name, i, err)
		}
		c.hooks = append(c.hooks, h)
	}
	return c, nil
}

func (c *Crossing) Name() string {
	return c.name
}

func (c *Crossing) Run(ctx context.Context) error {
	ctx = withCrossing(ctx, c.name)
	newLoggerFromContext(ctx).Debug("waiting for green")
	for {
		if err := c.light.WaitForGreen(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.Cross(withPhase(ctx, PhaseGreen)); err != nil {
			newLoggerFromContext(ctx).Warn("some hooks failed", "error", err.Error())
		}
	}
}

// Cross runs all hooks in order and returns their joined errors.
func (c *Crossing) Cross(ctx context.Context) error {
	ctx = withNotification(ctx, Notification{
		Phase:    phaseFromContext(ctx),
		Crossing: c.name,
		Time:     time.Now(),
	})
	logger := newLoggerFromContext(ctx)
	logger.Info("crossing", "hooks", len(c.hooks))

	var errs error
	// hooks always run all.
	for i, h := range c.hooks {
		if err := h.Run(ctx); err != nil {
			errs = errors.Join(errs, fmt.Errorf("hook index:%d name:%s failed: %w", i, h.Name(), err))
		}
	}
	return errs
}
