package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillminer/skillminer/pkg/api"
	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/presenter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the candidate review API server",
	Long: `Start a local HTTP server exposing the candidate review API: listing
and inspecting mined candidates, generating change proposals, driving
the review lifecycle and applying approved proposals to the registry.

The server is available at http://localhost:8317 by default.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		config, err := loadConfig()
		if err != nil {
			return err
		}

		if err := validateServeHost(config.Server.Host); err != nil {
			return err
		}

		st, err := openStore(ctx, config)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.G(ctx).WithError(closeErr).Error("failed to close candidate store")
			}
		}()

		service, err := newService(config, st)
		if err != nil {
			return err
		}

		server, err := api.NewServer(&config.Server, st, service)
		if err != nil {
			return errors.Wrap(err, "failed to create API server")
		}

		logger.G(ctx).WithFields(map[string]any{
			"host":    config.Server.Host,
			"port":    config.Server.Port,
			"backend": config.Store.Backend,
		}).Info("Starting API server")

		presenter.Success(fmt.Sprintf("API server starting on http://%s:%d", config.Server.Host, config.Server.Port))
		presenter.Info("Press Ctrl+C to stop the server")

		if err := server.Start(ctx); err != nil {
			return errors.Wrap(err, "API server failed")
		}

		presenter.Info("API server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Host to bind the API server to")
	serveCmd.Flags().Int("port", 8317, "Port to bind the API server to")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func validateServeHost(host string) error {
	if host == "" {
		return errors.New("host cannot be empty")
	}
	if host != "localhost" && host != "0.0.0.0" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.Contains(host, " ") || strings.Contains(host, ":") {
				return errors.Errorf("invalid host: %s", host)
			}
		}
	}
	return nil
}
