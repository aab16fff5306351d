package trafficlight

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Hook is an action a crossing runs after it observed a green light.
// What happened is available from the context as a Notification.
type Hook interface {
	Name() string
	Run(ctx context.Context) error
}

// Notification describes one crossing. Hooks deliver it as JSON unless they
// are given a template.
type Notification struct {
	Phase    Phase     `json:"phase"`
	Crossing string    `json:"crossing"`
	Time     time.Time `json:"time"`
}

// JSON encodes n on a single line.
func (n Notification) JSON() []byte {
	b, _ := json.Marshal(n)
	return b
}

// Expand fills {{phase}}, {{crossing}} and {{time}} in tmpl.
func (n Notification) Expand(tmpl string) string {
	ts := ""
	if !n.Time.IsZero() {
		ts = n.Time.Format(time.RFC3339)
	}
	return strings.NewReplacer(
		"{{phase}}", string(n.Phase),
		"{{crossing}}", n.Crossing,
		"{{time}}", ts,
	).Replace(tmpl)
}

// payload is the template expansion of tmpl, or the JSON form when tmpl is empty.
func (n Notification) payload(tmpl string) []byte {
	if tmpl == "" {
		return n.JSON()
	}
	return []byte(n.Expand(tmpl))
}

func NewHook(cfg *HookConfig) (Hook, error) {
	switch {
	case cfg.Command != nil:
		return NewCommandHook(cfg)
	case cfg.HTTP != nil:
		return NewHTTPHook(cfg)
	case cfg.TCP != nil:
		return NewTCPHook(cfg)
	default:
		return nil, errors.New("hook requires one of command, http or tcp")
	}
}
