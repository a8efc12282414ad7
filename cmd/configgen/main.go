package main

import (
	"fmt"
	"os"

	"github.com/danmuck/ragent/internal/config"
	"github.com/danmuck/ragent/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var defaultPaths = map[string]string{
	config.KindAgent:     "cmd/ragentctl/config.toml",
	config.KindAddresses: "cmd/ragentctl/addresses.toml",
	config.KindRouterSim: "cmd/routersim/config.toml",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var kind string
	root := &cobra.Command{
		Use:   "configgen",
		Short: "Write and validate ragent config files",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			observability.InitLogger("configgen")
			if _, ok := defaultPaths[kind]; !ok {
				return fmt.Errorf("unknown config kind: %s", kind)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&kind, "kind", "k", config.KindAgent, "config kind: agent|addresses|routersim")

	var (
		output string
		force  bool
	)
	write := &cobra.Command{
		Use:   "write",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			target := output
			if target == "" {
				target = defaultPaths[kind]
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			log.Info().Str("kind", kind).Str("path", target).Msg("wrote config template")
			return nil
		},
	}
	write.Flags().StringVarP(&output, "output", "o", "", "output path (defaults to per-kind cmd path)")
	write.Flags().BoolVar(&force, "force", false, "overwrite existing config file")

	var input string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate an existing config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := input
			if path == "" {
				path = defaultPaths[kind]
			}
			var err error
			switch kind {
			case config.KindAddresses:
				_, err = config.LoadAddressFile(path)
			case config.KindRouterSim:
				_, err = config.LoadSimConfig(path)
			default:
				return fmt.Errorf("validate %s configs with ragentctl check", kind)
			}
			if err != nil {
				return err
			}
			log.Info().Str("kind", kind).Str("path", path).Msg("validated config")
			return nil
		},
	}
	validate.Flags().StringVarP(&input, "input", "i", "", "config path (defaults to per-kind cmd path)")

	root.AddCommand(write, validate)
	return root
}
