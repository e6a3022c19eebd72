package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aborodya/zipline/internal/core"
)

const dateLayout = "2006-01-02"

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Benchmark  BenchmarkConfig  `mapstructure:"benchmark"`
	Bundle     BundleConfig     `mapstructure:"bundle"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SimulationConfig struct {
	Start              string         `mapstructure:"start"` // YYYY-MM-DD
	End                string         `mapstructure:"end"`
	CapitalBase        float64        `mapstructure:"capital_base"`
	EmissionRate       string         `mapstructure:"emission_rate"` // "daily" or "minute"
	MetricsSet         string         `mapstructure:"metrics_set"`
	PerShareCommission float64        `mapstructure:"per_share_commission"`
	BarInterval        time.Duration  `mapstructure:"bar_interval"` // minute emission only
	Strategy           StrategyConfig `mapstructure:"strategy"`
}

type StrategyConfig struct {
	Name   string  `mapstructure:"name"` // "buy_and_hold" or "sma_crossover"
	Symbol string  `mapstructure:"symbol"`
	Weight float64 `mapstructure:"weight"` // buy_and_hold
	Fast   int     `mapstructure:"fast"`   // sma_crossover
	Slow   int     `mapstructure:"slow"`
}

type CalendarConfig struct {
	Name  string `mapstructure:"name"`  // "weekday" or "allday"
	Open  string `mapstructure:"open"`  // HH:MM
	Close string `mapstructure:"close"` // HH:MM
}

type BenchmarkConfig struct {
	Symbol string `mapstructure:"symbol"`
	// Source selects where daily benchmark returns come from: "bundle"
	// reads the ingested CSV, "flat" serves a constant return per session.
	Source string  `mapstructure:"source"`
	Flat   float64 `mapstructure:"flat"`
}

type BundleConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Simulation: SimulationConfig{
			CapitalBase:  100000,
			EmissionRate: "daily",
			MetricsSet:   "default",
			BarInterval:  time.Minute,
			Strategy: StrategyConfig{
				Name:   "buy_and_hold",
				Symbol: "SPY",
				Weight: 1,
				Fast:   10,
				Slow:   30,
			},
		},
		Calendar: CalendarConfig{
			Name:  "weekday",
			Open:  "09:30",
			Close: "16:00",
		},
		Benchmark: BenchmarkConfig{
			Symbol: "SPY",
			Source: "bundle",
		},
		Bundle: BundleConfig{
			Type: "localfs",
			Path: "data/bundles",
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Window parses the simulation date range.
func (s SimulationConfig) Window() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, s.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing simulation start: %w", err)
	}
	end, err = time.Parse(dateLayout, s.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing simulation end: %w", err)
	}
	return start, end, nil
}

// Rate returns the emission rate as its domain type.
func (s SimulationConfig) Rate() core.EmissionRate {
	return core.EmissionRate(s.EmissionRate)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Simulation.CapitalBase <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("capital_base must be positive, got %f", c.Simulation.CapitalBase))
	}
	if !c.Simulation.Rate().Valid() {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("emission_rate must be daily or minute, got %q", c.Simulation.EmissionRate))
	}
	if c.Simulation.Start == "" || c.Simulation.End == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("simulation start and end dates are required"))
	}
	start, end, err := c.Simulation.Window()
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if end.Before(start) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("simulation end %s before start %s", c.Simulation.End, c.Simulation.Start))
	}
	if c.Simulation.Rate() == core.EmissionMinute && c.Simulation.BarInterval <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("bar_interval must be positive for minute emission"))
	}

	switch c.Simulation.Strategy.Name {
	case "buy_and_hold":
	case "sma_crossover":
		if c.Simulation.Strategy.Fast <= 0 || c.Simulation.Strategy.Slow <= c.Simulation.Strategy.Fast {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("sma_crossover needs 0 < fast < slow, got fast=%d slow=%d",
					c.Simulation.Strategy.Fast, c.Simulation.Strategy.Slow))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown strategy %q", c.Simulation.Strategy.Name))
	}
	if c.Simulation.Strategy.Symbol == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("strategy symbol is required"))
	}

	switch c.Calendar.Name {
	case "weekday", "allday":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown calendar %q", c.Calendar.Name))
	}

	switch c.Benchmark.Source {
	case "bundle":
		if c.Benchmark.Symbol == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("benchmark symbol required when source is bundle"))
		}
	case "flat":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("benchmark source must be bundle or flat, got %q", c.Benchmark.Source))
	}

	switch c.Bundle.Type {
	case "localfs":
		if c.Bundle.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("bundle path required when type is localfs"))
		}
	case "s3":
		if c.Bundle.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when bundle type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("bundle type must be localfs or s3, got %q", c.Bundle.Type))
	}

	if c.Telemetry.Enabled && c.Telemetry.Addr == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("telemetry addr required when telemetry is enabled"))
	}

	return nil
}
