package hammercheck

import (
	"github.com/himanishpuri/HammerCheck/internal/align"
	"github.com/himanishpuri/HammerCheck/internal/prefilter"
)

// Window is the tolerance model of the aligner.
type Window = align.Window

// DefaultWindow is the 500-unit window clamped to [60%, 100%].
func DefaultWindow() Window { return align.DefaultWindow() }

// AudibilityChecker decides whether a strike on a key produces sound.
type AudibilityChecker = prefilter.AudibilityChecker

// PrefilterConfig enables the optional upstream checks. Zero values disable
// them. Events with no usable data are always removed.
type PrefilterConfig struct {
	MinDuration     int64
	MinPeakPressure int
}

type Config struct {
	DBPath    string
	Logger    Logger
	Storage   Storage
	Window    Window
	Prefilter PrefilterConfig
	Checker   AudibilityChecker
	History   bool
}

type Option func(*Config)

// WithDBPath sets the history database file. Without it the service reads
// HAMMERCHECK_DB_PATH.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithWindow(w Window) Option {
	return func(c *Config) {
		c.Window = w
	}
}

func WithPrefilter(p PrefilterConfig) Option {
	return func(c *Config) {
		c.Prefilter = p
	}
}

func WithAudibilityChecker(checker AudibilityChecker) Option {
	return func(c *Config) {
		c.Checker = checker
	}
}

// WithoutHistory disables persistence. No database is opened.
func WithoutHistory() Option {
	return func(c *Config) {
		c.History = false
	}
}

func defaultConfig() *Config {
	return &Config{
		Window:  align.DefaultWindow(),
		History: true,
	}
}
