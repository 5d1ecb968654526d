package main

import (
	"errors"
	"strings"

	statsig "github.com/open-feature/go-sdk-contrib/providers/statsig"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// loadConfig layers defaults, the optional YAML file, STATSIG_* environment
// variables and command line flags, in increasing order of precedence.
func loadConfig(flags *pflag.FlagSet) (statsig.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("statsigctl")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("STATSIG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := statsig.DefaultConfig("")
	v.SetDefault("base-url", defaults.BaseURL)
	v.SetDefault("events-base-url", defaults.EventsBaseURL)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("retry-attempts", defaults.RetryAttempts)
	v.SetDefault("retry-delay", defaults.RetryDelay)
	v.SetDefault("cache-ttl", defaults.CacheTTL)
	v.SetDefault("cache-max-capacity", defaults.CacheMaxCapacity)
	v.SetDefault("batch-size", defaults.BatchSize)
	v.SetDefault("batch-flush-interval", defaults.BatchFlushInterval)
	v.SetDefault("exposure-logging-disabled", false)

	if err := v.BindPFlags(flags); err != nil {
		return statsig.Config{}, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return statsig.Config{}, err
		}
	}

	config := statsig.DefaultConfig(v.GetString("api-key"))
	config.BaseURL = v.GetString("base-url")
	config.EventsBaseURL = v.GetString("events-base-url")
	config.Timeout = v.GetDuration("timeout")
	config.RetryAttempts = v.GetUint("retry-attempts")
	config.RetryDelay = v.GetDuration("retry-delay")
	config.CacheTTL = v.GetDuration("cache-ttl")
	config.CacheMaxCapacity = v.GetInt("cache-max-capacity")
	config.BatchSize = v.GetInt("batch-size")
	config.BatchFlushInterval = v.GetDuration("batch-flush-interval")
	config.ExposureLoggingDisabled = v.GetBool("exposure-logging-disabled")
	return config, nil
}
