package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL string
	PGDSN  string

	// BlockProcessLimit is the initial and post-error window size in blocks.
	BlockProcessLimit uint64
	// MinWindowSize is the floor the adaptive window never drops below.
	MinWindowSize uint64
	// WindowStep is the additive increment/decrement applied in the middle
	// tuning bands.
	WindowStep uint64
	// UpdatedBlocksBehind is the confirmation depth subtracted from the chain
	// head before a block is scanned.
	UpdatedBlocksBehind uint64
	// QueryChunkSize caps addresses per log query.
	QueryChunkSize int

	FetchTimeout    time.Duration
	FastThreshold   time.Duration
	TargetThreshold time.Duration
	SlowThreshold   time.Duration

	PollInterval  time.Duration
	MetricsListen string
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("block-process-limit", uint64(10000))
	v.SetDefault("min-window-size", uint64(100))
	v.SetDefault("window-step", uint64(10000))
	v.SetDefault("updated-blocks-behind", uint64(300))
	v.SetDefault("query-chunk-size", 500)
	v.SetDefault("fetch-timeout", 30*time.Second)
	v.SetDefault("fast-threshold", 2*time.Second)
	v.SetDefault("target-threshold", 5*time.Second)
	v.SetDefault("slow-threshold", 30*time.Second)
	v.SetDefault("poll-interval", 15*time.Second)
	v.SetDefault("metrics-listen", ":9090")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc"),
		PGDSN:               v.GetString("pg-dsn"),
		BlockProcessLimit:   v.GetUint64("block-process-limit"),
		MinWindowSize:       v.GetUint64("min-window-size"),
		WindowStep:          v.GetUint64("window-step"),
		UpdatedBlocksBehind: v.GetUint64("updated-blocks-behind"),
		QueryChunkSize:      v.GetInt("query-chunk-size"),
		FetchTimeout:        v.GetDuration("fetch-timeout"),
		FastThreshold:       v.GetDuration("fast-threshold"),
		TargetThreshold:     v.GetDuration("target-threshold"),
		SlowThreshold:       v.GetDuration("slow-threshold"),
		PollInterval:        v.GetDuration("poll-interval"),
		MetricsListen:       v.GetString("metrics-listen"),
		LogLevel:            v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BlockProcessLimit == 0 {
		return fmt.Errorf("block-process-limit must be greater than zero")
	}
	if c.MinWindowSize == 0 {
		return fmt.Errorf("min-window-size must be greater than zero")
	}
	if c.MinWindowSize > c.BlockProcessLimit {
		return fmt.Errorf("min-window-size must not exceed block-process-limit")
	}
	if c.FastThreshold >= c.TargetThreshold || c.TargetThreshold >= c.SlowThreshold {
		return fmt.Errorf("tuning thresholds must satisfy fast < target < slow")
	}
	return nil
}
