package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/skillminer/skillminer/pkg/aggregator"
	"github.com/skillminer/skillminer/pkg/api"
	"github.com/skillminer/skillminer/pkg/gateway"
	"github.com/skillminer/skillminer/pkg/proposalcache"
	"github.com/skillminer/skillminer/pkg/store"
	"github.com/skillminer/skillminer/pkg/synthesizer"
)

// Config is the top-level application configuration, populated from
// ~/.skillminer/config.yaml, SKILLMINER_* environment variables and
// flags via viper.
type Config struct {
	Store      store.Config      `mapstructure:"store"`
	Aggregator aggregator.Config `mapstructure:"aggregator"`
	Gateway    gateway.Config    `mapstructure:"gateway"`
	Server     api.ServerConfig  `mapstructure:"server"`
}

func loadConfig() (*Config, error) {
	config := &Config{
		Store:      store.Config{Backend: "sqlite"},
		Aggregator: aggregator.Config{MinSelectorUsage: 1},
		Gateway:    gateway.DefaultConfig(),
		Server:     api.ServerConfig{Host: "localhost", Port: 8317},
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}

	return config, nil
}

func openStore(ctx context.Context, config *Config) (store.CandidateStore, error) {
	st, err := store.New(ctx, config.Store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open candidate store")
	}
	return st, nil
}

func newService(config *Config, st store.CandidateStore) (*synthesizer.Service, error) {
	var gw synthesizer.Gateway
	if config.Gateway.Endpoint != "" {
		client, err := gateway.NewClient(config.Gateway)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create registry gateway client")
		}
		gw = client
	}
	return synthesizer.NewService(st, proposalcache.New(), gw), nil
}
