package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"time26/config"
)

var configPath string

// Cmd builds the time26 command tree
func Cmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "time26",
		Short:         "TIME26 reward settlement and claim-proof engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(settleCmd())
	rootCmd.AddCommand(merkleCmd())
	rootCmd.AddCommand(reconcileCmd())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Logging)
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		return
	}
	log.SetFormatter(&log.JSONFormatter{})
}

// printJSON writes v to the command's output
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
