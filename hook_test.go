package trafficlight

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testNotification() Notification {
	return Notification{
		Phase:    PhaseGreen,
		Crossing: "main",
		Time:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNotificationPayload(t *testing.T) {
	n := testNotification()
	require.JSONEq(t, `{"phase":"green","crossing":"main","time":"2024-01-02T03:04:05Z"}`, string(n.payload("")))
	require.Equal(t, "main is green at 2024-01-02T03:04:05Z", string(n.payload("{{crossing}} is {{phase}} at {{time}}")))
	require.Equal(t, "red  ", Notification{Phase: PhaseRed}.Expand("{{phase}} {{crossing}} {{time}}"))
}

func TestNotificationFromContext(t *testing.T) {
	ctx := withCrossing(withPhase(context.Background(), PhaseRed), "side")
	require.Equal(t, Notification{Phase: PhaseRed, Crossing: "side"}, notificationFromContext(ctx))

	n := testNotification()
	require.Equal(t, n, notificationFromContext(withNotification(ctx, n)))
}

func TestCommandHook(t *testing.T) {
	ctx := withNotification(context.Background(), testNotification())
	out := filepath.Join(t.TempDir(), "stdin.json")

	h, err := NewCommandHook(&HookConfig{
		Name:    "env",
		Timeout: 5 * time.Second,
		Command: &CommandHookConfig{
			Run: `sh -c 'test "$TRAFFICLIGHT_PHASE" = green && test "$TRAFFICLIGHT_CROSSING" = main && cat > ` + out + `'`,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "env", h.Name())
	require.NoError(t, h.Run(ctx))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	var got Notification
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, testNotification(), got)

	h, err = NewCommandHook(&HookConfig{
		Name:    "fail",
		Timeout: 5 * time.Second,
		Command: &CommandHookConfig{Run: "sh -c 'exit 3'"},
	})
	require.NoError(t, err)
	require.ErrorContains(t, h.Run(ctx), "exited with 3")

	h, err = NewCommandHook(&HookConfig{
		Name:    "empty",
		Timeout: time.Second,
		Command: &CommandHookConfig{Run: ""},
	})
	require.NoError(t, err)
	require.EqualError(t, h.Run(ctx), "no command")

	_, err = NewCommandHook(&HookConfig{
		Name:    "unbalanced",
		Command: &CommandHookConfig{Run: `echo "oops`},
	})
	require.Error(t, err)
}

func TestCommandHookTimeout(t *testing.T) {
	h, err := NewCommandHook(&HookConfig{
		Name:    "slow",
		Timeout: 50 * time.Millisecond,
		Command: &CommandHookConfig{Run: "sleep 10"},
	})
	require.NoError(t, err)
	start := time.Now()
	require.Error(t, h.Run(withPhase(context.Background(), PhaseGreen)))
	require.Less(t, time.Since(start), 5*time.Second)
}

// serveLines accepts one connection, hands over the first line it reads and
// replies with reply.
func serveLines(t *testing.T, reply string) (host, port string, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		ch <- line
		if reply != "" {
			conn.Write([]byte(reply))
		}
	}()
	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port, ch
}

func TestTCPHookJSON(t *testing.T) {
	host, port, received := serveLines(t, "")
	h, err := NewTCPHook(&HookConfig{
		Name:    "tcp",
		Timeout: time.Second,
		TCP:     &TCPHookConfig{Host: host, Port: port},
	})
	require.NoError(t, err)
	require.NoError(t, h.Run(withNotification(context.Background(), testNotification())))

	var got Notification
	require.NoError(t, json.Unmarshal([]byte(<-received), &got))
	require.Equal(t, testNotification(), got)
}

func TestTCPHookAck(t *testing.T) {
	ctx := withNotification(context.Background(), testNotification())

	host, port, received := serveLines(t, "OK main\n")
	h, err := NewTCPHook(&HookConfig{
		Name:    "ack",
		Timeout: time.Second,
		TCP:     &TCPHookConfig{Host: host, Port: port, Send: "{{crossing}} {{phase}}", ExpectAck: "OK"},
	})
	require.NoError(t, err)
	require.NoError(t, h.Run(ctx))
	require.Equal(t, "main green\n", <-received)

	host, port, _ = serveLines(t, "NG busy\n")
	h, err = NewTCPHook(&HookConfig{
		Name:    "nack",
		Timeout: time.Second,
		TCP:     &TCPHookConfig{Host: host, Port: port, ExpectAck: "OK"},
	})
	require.NoError(t, err)
	require.ErrorContains(t, h.Run(ctx), "unexpected ack")
}

func TestNewTCPHookInvalid(t *testing.T) {
	_, err := NewTCPHook(&HookConfig{Name: "noport", TCP: &TCPHookConfig{Host: "localhost"}})
	require.Error(t, err)
}
