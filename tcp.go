package trafficlight

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"
)

type TCPHookConfig struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	Send      string `yaml:"send"`
	ExpectAck string `yaml:"expect_ack"`
	TLS       bool   `yaml:"tls"`
}

// TCPHook writes one line per crossing to a TCP endpoint: the notification
// as JSON, or the expanded send template. With ExpectAck set it reads one
// line back and requires it to start with the ack.
type TCPHook struct {
	name    string
	addr    string
	send    string
	ack     string
	useTLS  bool
	timeout time.Duration
}

func NewTCPHook(cfg *HookConfig) (*TCPHook, error) {
	if cfg.TCP.Port == "" {
		return nil, fmt.Errorf("tcp hook %s: port is required", cfg.Name)
	}
	return &TCPHook{
		name:    cfg.Name,
		addr:    net.JoinHostPort(cfg.TCP.Host, cfg.TCP.Port),
		send:    cfg.TCP.Send,
		ack:     cfg.TCP.ExpectAck,
		useTLS:  cfg.TCP.TLS,
		timeout: cfg.Timeout,
	}, nil
}

func (h *TCPHook) Name() string {
	return h.name
}

func (h *TCPHook) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	conn, err := h.dial(ctx)
	if err != nil {
		return fmt.Errorf("tcp connect failed: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	line := notificationFromContext(ctx).payload(h.send)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("tcp send failed: %w", err)
	}
	newLoggerFromContext(ctx).Debug("notified", "name", h.name, "module", "tcphook", "addr", h.addr)

	if h.ack == "" {
		return nil
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && reply == "" {
		return fmt.Errorf("tcp read ack failed: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(reply), h.ack) {
		return fmt.Errorf("tcp unexpected ack: %q", strings.TrimSpace(reply))
	}
	return nil
}

func (h *TCPHook) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{}
	if h.useTLS {
		td := &tls.Dialer{NetDialer: d}
		return td.DialContext(ctx, "tcp", h.addr)
	}
	return d.DialContext(ctx, "tcp", h.addr)
}
