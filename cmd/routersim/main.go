package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/ragent/internal/config"
	"github.com/danmuck/ragent/internal/gateway/memory"
	"github.com/danmuck/ragent/internal/observability"
	"github.com/danmuck/ragent/internal/protocol/mgmt"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "routersim: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	root := &cobra.Command{
		Use:   "routersim",
		Short: "Serve an in-memory router over the management protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			observability.InitLogger("routersim")
			return serve(cmd.Context(), configPath, addr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "cmd/routersim/config.toml", "simulated router config path")
	root.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return root
}

func serve(ctx context.Context, path, addr string) error {
	cfg, err := config.LoadSimConfig(path)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	router := memory.NewRouter(cfg.ID)
	for _, e := range cfg.Seed {
		if err := router.Put(e.TypeID(), e.Record); err != nil {
			return fmt.Errorf("seed %s: %w", e.Kind, err)
		}
	}
	log.Info().Str("id", cfg.ID).Int("seeded", len(cfg.Seed)).Msg("router started")

	srv := mgmt.NewServer(router, log.Logger.With().Str("router", cfg.ID).Logger())
	return srv.ListenAndServe(ctx, cfg.Addr)
}
