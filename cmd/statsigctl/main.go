// Command statsigctl evaluates gates and configs and logs events from the
// command line.
//
//	statsigctl [flags] check-gate <userID> <gate>...
//	statsigctl [flags] get-config <userID> <config>...
//	statsigctl [flags] log-event <userID> <event>
//
// Settings are read from statsigctl.yaml in the working directory (or the
// file named by --config), then from STATSIG_* environment variables, then
// from flags. The API key is usually supplied as STATSIG_API_KEY.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	statsig "github.com/open-feature/go-sdk-contrib/providers/statsig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage: statsigctl [flags] check-gate|get-config|log-event <userID> <name>...")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("statsigctl", pflag.ContinueOnError)
	flags.String("config", "", "path to a YAML config file")
	flags.String("api-key", "", "server secret key")
	flags.String("base-url", "", "evaluation endpoint root")
	flags.String("events-base-url", "", "event logging endpoint root")
	flags.Duration("timeout", 0, "per-attempt HTTP timeout")
	flags.Uint("retry-attempts", 0, "maximum retries per request")
	flags.Bool("verbose", false, "log every HTTP exchange")
	return flags
}

func run(args []string) error {
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return err
	}
	positional := flags.Args()
	if len(positional) < 3 {
		return errUsage
	}
	command, userID, names := positional[0], positional[1], positional[2:]

	logger, err := newLogger(flags)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	config, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := statsig.NewFromConfig(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close client", zap.Error(closeErr))
		}
	}()

	user := statsig.User{UserID: userID}
	var result any
	switch command {
	case "check-gate":
		result, err = client.CheckGates(ctx, names, user)
	case "get-config":
		result, err = client.GetConfigEvaluations(ctx, names, user)
	case "log-event":
		result, err = client.LogEvent(ctx, names[0], user)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return reportCacheMetrics(logger, client, command)
}

func newLogger(flags *pflag.FlagSet) (*zap.Logger, error) {
	if verbose, _ := flags.GetBool("verbose"); verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// reportCacheMetrics gathers the client's cache collector once and logs each sample.
func reportCacheMetrics(logger *zap.Logger, client *statsig.Client, command string) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(statsig.NewCacheCollector(client, prometheus.Labels{"command": command})); err != nil {
		return err
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := metric.GetCounter().GetValue()
			if gauge := metric.GetGauge(); gauge != nil {
				value = gauge.GetValue()
			}
			logger.Info("cache metric", zap.String("name", family.GetName()), zap.Float64("value", value))
		}
	}
	return nil
}
