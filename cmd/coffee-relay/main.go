// Command coffee-relay schedules a coffee machine relay on a Raspberry Pi GPIO
// line and serves an HTTP API to start, stop and query it.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/coffee-relay/internal/config"
	"github.com/sweeney/coffee-relay/internal/logging"
)

var (
	configPath string

	flagHTTP       string
	flagPin        int
	flagOnDuration time.Duration
	flagBroker     string
)

var rootCmd = &cobra.Command{
	Use:           "coffee-relay",
	Short:         "Coffee machine relay scheduler",
	Long:          "coffee-relay drives a single relay that switches a coffee machine on at a requested time of day and off again after a fixed on-duration.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env COFFEE_* overrides it)")
	rootCmd.PersistentFlags().StringVar(&flagHTTP, "http", "", "HTTP listen address")
	rootCmd.PersistentFlags().IntVar(&flagPin, "pin", 0, "GPIO line offset of the relay")

	serveCmd.Flags().DurationVar(&flagOnDuration, "on-duration", 0, "How long the relay stays on per episode, e.g. 10m")
	serveCmd.Flags().StringVar(&flagBroker, "broker", "", "MQTT broker address (empty disables MQTT)")

	rootCmd.AddCommand(serveCmd, statusCmd, stopCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, applies flags that were
// set explicitly and configures logging.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.Setup(cfg.Environment, cfg.LogLevel), nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("http") {
		cfg.HTTPAddr = flagHTTP
	}
	if flags.Changed("pin") {
		cfg.Pin = flagPin
	}
	if flags.Changed("on-duration") {
		cfg.OnDuration = flagOnDuration
	}
	if flags.Changed("broker") {
		cfg.Broker = flagBroker
	}
	return cfg.Validate()
}
