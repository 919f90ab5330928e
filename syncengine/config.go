package syncengine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Client Configuration
//
// Loaded from the environment; the CLI overrides fields from flags before
// calling Validate.
// ============================================================================

const (
	defaultDebounce       = 2 * time.Second
	defaultFlushInterval  = 30 * time.Second
	defaultPullInterval   = time.Minute
	defaultPageDebounce   = 3 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultMaxConcurrency = 4
	defaultStateFile      = "data/notesync-state.yaml"
)

// Config holds the client engine settings.
type Config struct {
	HubURL         string        // NOTESYNC_HUB_URL
	Username       string        // NOTESYNC_USERNAME
	Password       string        // NOTESYNC_PASSWORD
	Debounce       time.Duration // NOTESYNC_DEBOUNCE
	FlushInterval  time.Duration // NOTESYNC_FLUSH_INTERVAL
	PullInterval   time.Duration // NOTESYNC_PULL_INTERVAL
	PageDebounce   time.Duration // NOTESYNC_PAGE_DEBOUNCE
	StateFile      string        // NOTESYNC_STATE_FILE
	RequestTimeout time.Duration
	MaxConcurrency int // content pushes in flight at once
}

// DefaultConfig returns the built-in defaults without reading the environment.
func DefaultConfig() Config {
	return Config{
		Debounce:       defaultDebounce,
		FlushInterval:  defaultFlushInterval,
		PullInterval:   defaultPullInterval,
		PageDebounce:   defaultPageDebounce,
		StateFile:      defaultStateFile,
		RequestTimeout: defaultRequestTimeout,
		MaxConcurrency: defaultMaxConcurrency,
	}
}

// LoadConfig reads client settings from environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	cfg.HubURL = strings.TrimRight(os.Getenv("NOTESYNC_HUB_URL"), "/")
	cfg.Username = os.Getenv("NOTESYNC_USERNAME")
	cfg.Password = os.Getenv("NOTESYNC_PASSWORD")
	if v := os.Getenv("NOTESYNC_STATE_FILE"); v != "" {
		cfg.StateFile = v
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"NOTESYNC_DEBOUNCE", &cfg.Debounce},
		{"NOTESYNC_FLUSH_INTERVAL", &cfg.FlushInterval},
		{"NOTESYNC_PULL_INTERVAL", &cfg.PullInterval},
		{"NOTESYNC_PAGE_DEBOUNCE", &cfg.PageDebounce},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return cfg, serr.Wrap(err, fmt.Sprintf("invalid duration %q for %s", v, d.env))
		}
		*d.dst = parsed
	}
	return cfg, nil
}

// Validate checks the settings needed to reach a hub.
func (c Config) Validate() error {
	if c.HubURL == "" {
		return serr.New("NOTESYNC_HUB_URL is required")
	}
	if !strings.HasPrefix(c.HubURL, "http://") && !strings.HasPrefix(c.HubURL, "https://") {
		return serr.New("NOTESYNC_HUB_URL must start with http:// or https://")
	}
	if c.Username == "" || c.Password == "" {
		return serr.New("NOTESYNC_USERNAME and NOTESYNC_PASSWORD are required")
	}
	if c.Debounce <= 0 || c.FlushInterval <= 0 || c.PullInterval <= 0 || c.PageDebounce <= 0 {
		return serr.New("sync intervals must be positive")
	}
	return nil
}
