package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// config is the full tunable surface of a bulk run. Values resolve in
// the usual order: flags over environment (BULKPOST_*) over config
// file over defaults.
type config struct {
	URL         string        `mapstructure:"url" validate:"required,url"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
	MaxRetries  int           `mapstructure:"max-retries" validate:"gte=0"`
	ExitOnError bool          `mapstructure:"exit-on-error"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// Adaptive bucket settings.
	InitialRate     float64       `mapstructure:"initial-rate" validate:"gt=0"`
	MaxRate         float64       `mapstructure:"max-rate" validate:"gte=0"`
	Window          time.Duration `mapstructure:"window" validate:"gt=0"`
	ReductionFactor float64       `mapstructure:"reduction-factor" validate:"gt=0,lte=1"`
	IncreaseFactor  float64       `mapstructure:"increase-factor" validate:"gte=0"`
	Cooldown        time.Duration `mapstructure:"cooldown" validate:"gte=0"`

	// MaxAttempts caps throttle retries per item; 0 retries forever.
	MaxAttempts int `mapstructure:"max-attempts" validate:"gte=0"`
}

func loadConfig() (config, error) {
	var cfg config

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
	}

	viper.SetEnvPrefix("BULKPOST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
