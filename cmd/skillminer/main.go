package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
)

func init() {
	viper.SetEnvPrefix("SKILLMINER")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillminer")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skillminer",
	Short: "Mine automation telemetry into reviewable skill updates",
	Long: `Skillminer digests selector and workflow telemetry emitted by automation
runs, aggregates it into per-skill candidates, and turns approved
candidates into change proposals for the skill registry.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if level := viper.GetString("log_level"); level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				return err
			}
		}
		if format := viper.GetString("log_format"); format != "" {
			logger.SetLogFormat(format)
		}
		presenter.SetQuiet(viper.GetBool("quiet"))
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text or json)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress informational output")
	rootCmd.PersistentFlags().String("store", "", "Candidate store backend (sqlite or memory)")
	rootCmd.PersistentFlags().String("db-path", "", "Path to the sqlite database file")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("store.db_path", rootCmd.PersistentFlags().Lookup("db-path"))

	rootCmd.AddCommand(withTracing(serveCmd))
	rootCmd.AddCommand(withTracing(ingestCmd))
	rootCmd.AddCommand(withTracing(watchCmd))
	rootCmd.AddCommand(candidateCmd)
	rootCmd.AddCommand(withTracing(proposeCmd))
	rootCmd.AddCommand(withTracing(applyCmd))
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := initTracing(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to shut down tracer")
			}
		}()
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "command failed")
		os.Exit(1)
	}
}
