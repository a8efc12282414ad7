package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/ragent/internal/addressing"
	"github.com/danmuck/ragent/internal/agent"
	"github.com/danmuck/ragent/internal/config"
	"github.com/danmuck/ragent/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ragentctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "ragentctl",
		Short: "Keep router address configuration in line with declared addresses",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			observability.InitLogger("ragentctl")
			log.Debug().Str("command", cmd.Name()).Msg("command started")
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd.Context(), configPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "cmd/ragentctl/config.toml", "agent config path")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the agent config and address definitions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, _, err := loadAll(configPath)
			return err
		},
	})
	return root
}

func loadAll(path string) (agent.Config, []addressing.Definition, error) {
	cfg, err := loadAgentConfig(path)
	if err != nil {
		return agent.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return agent.Config{}, nil, err
	}
	defs, err := loadDefinitions(cfg.AddressesFile)
	if err != nil {
		return agent.Config{}, nil, err
	}
	log.Info().
		Str("path", path).
		Int("routers", len(cfg.Routers)).
		Int("definitions", len(defs)).
		Msg("loaded agent config")
	return cfg, defs, nil
}

func runAgent(ctx context.Context, path string) error {
	cfg, defs, err := loadAll(path)
	if err != nil {
		return err
	}

	observability.RegisterMetrics()
	a := agent.New(cfg, agent.MgmtGateways(cfg, log.Logger), log.Logger)
	defer a.Close()
	if err := a.Apply(defs); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })
	g.Go(func() error {
		return agent.NewStatusServer(a, cfg.ID, cfg.StatusAddr, cfg.CorsOrigins, log.Logger).Serve(gctx)
	})
	g.Go(func() error {
		reloadOnHangup(gctx, a, cfg.AddressesFile)
		return nil
	})
	return g.Wait()
}

func loadDefinitions(path string) ([]addressing.Definition, error) {
	if path == "" {
		return []addressing.Definition{}, nil
	}
	return config.LoadAddressFile(path)
}

// reloadOnHangup republishes the address file on SIGHUP.
func reloadOnHangup(ctx context.Context, a *agent.Agent, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		defs, err := loadDefinitions(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("reload failed, keeping current definitions")
			continue
		}
		if err := a.Apply(defs); err != nil {
			log.Error().Err(err).Msg("reload rejected")
			continue
		}
		log.Info().Str("path", path).Int("definitions", len(defs)).Msg("address definitions reloaded")
	}
}
