package hammercheck

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/himanishpuri/HammerCheck/internal/prefilter"
)

// EnvConfig is the process configuration read from the environment. CLI and
// server flags default to it.
type EnvConfig struct {
	DBPath         string   `env:"HAMMERCHECK_DB_PATH"      envDefault:"hammercheck.sqlite3"`
	Port           int      `env:"HAMMERCHECK_PORT"         envDefault:"8080"`
	Origins        []string `env:"HAMMERCHECK_ORIGINS"      envSeparator:"," envDefault:"*"`
	MinDuration    int64    `env:"HAMMERCHECK_MIN_DURATION"`
	MinPressure    int      `env:"HAMMERCHECK_MIN_PRESSURE"`
	ThresholdsPath string   `env:"HAMMERCHECK_THRESHOLDS"`
	PWMTolerance   float64  `env:"HAMMERCHECK_PWM_TOLERANCE" envDefault:"10"`
}

// LoadEnvConfig parses EnvConfig from the environment.
func LoadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Options turns the configuration into service options. It loads the motor
// thresholds file when one is set.
func (c EnvConfig) Options() ([]Option, error) {
	opts := []Option{
		WithDBPath(c.DBPath),
		WithPrefilter(PrefilterConfig{
			MinDuration:     c.MinDuration,
			MinPeakPressure: c.MinPressure,
		}),
	}
	if c.ThresholdsPath != "" {
		checker, err := prefilter.LoadMotorThresholds(c.ThresholdsPath, c.PWMTolerance)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithAudibilityChecker(checker))
	}
	return opts, nil
}
