package trafficlight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Songmu/wrapcommander"
	"github.com/mattn/go-shellwords"
)

// Environment variables set for command hooks.
const (
	PhaseEnv    = "TRAFFICLIGHT_PHASE"
	CrossingEnv = "TRAFFICLIGHT_CROSSING"
)

type CommandHookConfig struct {
	Run string `yaml:"run"`
}

// CommandHook runs a command for every crossing. The notification is passed
// in the environment and as JSON on stdin.
type CommandHook struct {
	name    string
	argv    []string
	timeout time.Duration
}

func NewCommandHook(cfg *HookConfig) (*CommandHook, error) {
	argv, err := shellwords.Parse(cfg.Command.Run)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %s %w", cfg.Command.Run, err)
	}
	return &CommandHook{
		name:    cfg.Name,
		argv:    argv,
		timeout: cfg.Timeout,
	}, nil
}

func (c *CommandHook) Name() string {
	return c.name
}

func (c *CommandHook) Run(ctx context.Context) error {
	if len(c.argv) == 0 {
		return errors.New("no command")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n := notificationFromContext(ctx)
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Env = append(os.Environ(),
		PhaseEnv+"="+string(n.Phase),
		CrossingEnv+"="+n.Crossing,
	)
	cmd.Stdin = bytes.NewReader(n.JSON())
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 3 * time.Second

	log := newLoggerFromContext(ctx).With("name", c.name, "module", "commandhook")
	log.Debug("running command", "argv", fmt.Sprintf("%v", c.argv))
	out, err := cmd.CombinedOutput()
	code := wrapcommander.ResolveExitCode(err)
	if err != nil {
		log.Info("command failed",
			slog.Int("exit_code", code),
			slog.String("output", string(out)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("command exited with %d: %w", code, err)
	}
	log.Debug("command done", slog.String("output", string(out)))
	return nil
}
