package trafficlight

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type HTTPHookConfig struct {
	URL        string            `yaml:"url"`
	Method     string            `yaml:"method"`
	Headers    map[string]string `yaml:"headers"`
	Body       string            `yaml:"body"`
	ExpectCode string            `yaml:"expect_code"`
}

// HTTPHook posts the notification to a URL. Without a body template the
// request carries the notification as JSON.
type HTTPHook struct {
	name     string
	url      string
	method   string
	headers  map[string]string
	body     string
	accepted func(code int) bool
	client   *http.Client
}

func NewHTTPHook(cfg *HookConfig) (*HTTPHook, error) {
	u, err := url.Parse(cfg.HTTP.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", cfg.HTTP.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %s: scheme must be http or https", cfg.HTTP.URL)
	}
	h := &HTTPHook{
		name:     cfg.Name,
		url:      u.String(),
		method:   cfg.HTTP.Method,
		headers:  cfg.HTTP.Headers,
		body:     cfg.HTTP.Body,
		accepted: func(code int) bool { return code >= 200 && code < 300 },
		client:   &http.Client{Timeout: cfg.Timeout},
	}
	if h.method == "" {
		h.method = http.MethodPost
	}
	if ec := cfg.HTTP.ExpectCode; ec != "" {
		if h.accepted, err = newExpectCodeFunc(ec); err != nil {
			return nil, fmt.Errorf("invalid expect_code %s: %w", ec, err)
		}
	}
	return h, nil
}

func (h *HTTPHook) Name() string {
	return h.name
}

func (h *HTTPHook) Run(ctx context.Context) error {
	n := notificationFromContext(ctx)
	req, err := http.NewRequestWithContext(ctx, h.method, h.url, bytes.NewReader(n.payload(h.body)))
	if err != nil {
		return err
	}
	if h.body == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range h.headers {
		req.Header.Set(k, n.Expand(v))
	}
	req.Header.Set("User-Agent", "trafficlight/"+Version)

	newLoggerFromContext(ctx).Debug("notifying", "name", h.name, "module", "httphook", "method", h.method, "url", h.url)
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http notify failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if !h.accepted(resp.StatusCode) {
		return fmt.Errorf("http notify rejected: %s", resp.Status)
	}
	return nil
}

type codeRange struct{ lo, hi int }

// newExpectCodeFunc parses comma separated status codes and ranges,
// e.g. "200,201,202-204,300-399".
func newExpectCodeFunc(codes string) (func(code int) bool, error) {
	var ranges []codeRange
	for _, part := range strings.Split(codes, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		r := codeRange{}
		var err error
		if r.lo, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
			return nil, fmt.Errorf("invalid code: %s", part)
		}
		r.hi = r.lo
		if isRange {
			if r.hi, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || r.hi < r.lo {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
		}
		ranges = append(ranges, r)
	}
	return func(code int) bool {
		for _, r := range ranges {
			if r.lo <= code && code <= r.hi {
				return true
			}
		}
		return false
	}, nil
}
