package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/goccy/go-yaml"
)

const (
	DefaultMinCycle      = 4 * time.Second
	DefaultMaxCycle      = 6 * time.Second
	DefaultPollInterval  = time.Millisecond
	DefaultHookTimeout   = 5 * time.Second
	DefaultListenAddr    = ":8080"
	DefaultWatchInterval = 100 * time.Millisecond
)

type Config struct {
	Light     *LightConfig      `yaml:"light"`
	Responder *ResponderConfig  `yaml:"responder"`
	Crossings []*CrossingConfig `yaml:"crossings"`
}

type LightConfig struct {
	MinCycle     time.Duration `yaml:"min_cycle"`
	MaxCycle     time.Duration `yaml:"max_cycle"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type ResponderConfig struct {
	Addr          string        `yaml:"addr"`
	WatchInterval time.Duration `yaml:"watch_interval"`
}

type CrossingConfig struct {
	Name  string        `yaml:"name"`
	Hooks []*HookConfig `yaml:"hooks"`
}

type HookConfig struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`

	Command *CommandHookConfig `yaml:"command"`
	TCP     *TCPHookConfig     `yaml:"tcp"`
	HTTP    *HTTPHookConfig    `yaml:"http"`
}

func DefaultLightConfig() *LightConfig {
	return &LightConfig{
		MinCycle:     DefaultMinCycle,
		MaxCycle:     DefaultMaxCycle,
		PollInterval: DefaultPollInterval,
	}
}

func LoadConfig(ctx context.Context, src string) (*Config, error) {
	config := &Config{
		Light: DefaultLightConfig(),
		Responder: &ResponderConfig{
			Addr:          DefaultListenAddr,
			WatchInterval: DefaultWatchInterval,
		},
	}
	b, err := loadURL(ctx, src)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", src, err)
	}
	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", src, err)
	}
	return config, nil
}

func (c *Config) setDefaults() {
	if c.Light == nil {
		c.Light = DefaultLightConfig()
	}
	if c.Light.MinCycle == 0 {
		c.Light.MinCycle = DefaultMinCycle
	}
	if c.Light.MaxCycle == 0 {
		c.Light.MaxCycle = DefaultMaxCycle
	}
	if c.Light.PollInterval == 0 {
		c.Light.PollInterval = DefaultPollInterval
	}
	if c.Responder == nil {
		c.Responder = &ResponderConfig{}
	}
	if c.Responder.Addr == "" {
		c.Responder.Addr = DefaultListenAddr
	}
	if c.Responder.WatchInterval == 0 {
		c.Responder.WatchInterval = DefaultWatchInterval
	}
	for i, cr := range c.Crossings {
		if cr.Name == "" {
			cr.Name = fmt.Sprintf("crossing-%d", i)
		}
		for _, h := range cr.Hooks {
			if h.Timeout == 0 {
				h.Timeout = DefaultHookTimeout
			}
		}
	}
}

func (c *Config) Validate() error {
	if err := c.Light.Validate(); err != nil {
		return err
	}
	var errs error
	for _, cr := range c.Crossings {
		for i, h := range cr.Hooks {
			if n := h.kinds(); n != 1 {
				errs = errors.Join(errs, fmt.Errorf("crossing %s hook %d: exactly one of command, http or tcp is required, got %d", cr.Name, i, n))
			}
		}
	}
	return errs
}

func (c *LightConfig) Validate() error {
	if c.MinCycle < time.Second {
		return fmt.Errorf("min_cycle must be at least 1s: %s", c.MinCycle)
	}
	if c.MaxCycle < c.MinCycle {
		return fmt.Errorf("max_cycle %s must not be less than min_cycle %s", c.MaxCycle, c.MinCycle)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive: %s", c.PollInterval)
	}
	return nil
}

func (h *HookConfig) kinds() int {
	n := 0
	if h.Command != nil {
		n++
	}
	if h.HTTP != nil {
		n++
	}
	if h.TCP != nil {
		n++
	}
	return n
}

func loadURL(ctx context.Context, s string) ([]byte, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", s, err)
	}
	switch u.Scheme {
	case "http", "https":
		return loadHTTP(ctx, u)
	case "file", "": // empty scheme is treated as file
		return os.ReadFile(u.Path)
	case "s3":
		return loadS3(ctx, u)
	default:
		return nil, fmt.Errorf("invalid url %s: scheme must be http, https, file, or s3", s)
	}
}

func loadHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http get failed: %s %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func loadS3(ctx context.Context, u *url.URL) ([]byte, error) {
	awscfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	svc := s3.NewFromConfig(awscfg)
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	out, err := svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object failed: %s: %w", u, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
