package trafficlight

import (
	"context"
	"log/slog"
	"sync"
)

type Intersection struct {
	Config *Config

	light     *TrafficLight
	crossings []*Crossing
	responder *Responder
}

func Run(ctx context.Context, cli *CLI) error {
	if cli.Debug {
		logLevel.Set(slog.LevelDebug)
	}
	cfg, err := LoadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	in, err := NewIntersection(cfg)
	if err != nil {
		return err
	}
	return in.Run(ctx)
}

func NewIntersection(cfg *Config, opts ...Option) (*Intersection, error) {
	light := NewTrafficLight(cfg.Light, opts...)
	in := &Intersection{
		Config:    cfg,
		light:     light,
		responder: NewResponder(cfg.Responder, light),
	}
	for _, c := range cfg.Crossings {
		crossing, err := NewCrossing(c, light)
		if err != nil {
			return nil, err
		}
		in.crossings = append(in.crossings, crossing)
	}
	return in, nil
}

func (in *Intersection) Light() *TrafficLight {
	return in.light
}

// Run simulates the light and serves crossings and the responder until ctx
// is done.
func (in *Intersection) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := in.light.Simulate(ctx); err != nil {
		return err
	}
	defer in.light.Stop()

	wg := &sync.WaitGroup{}
	errCh := make(chan error, 1+len(in.crossings))

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := in.responder.Run(ctx); err != nil {
			errCh <- err
		}
	}()
	for _, c := range in.crossings {
		wg.Add(1)
		go func(c *Crossing) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				errCh <- err
			}
		}(c)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("intersection stopped", "error", err.Error())
	}
	cancel()
	wg.Wait()
	return err
}
