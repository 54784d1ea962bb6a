package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run the full pipeline: select a target, load and verify it, and print the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bindBootEnv()
		if err != nil {
			return err
		}

		ctx := context.Background()
		o, err := buildOrchestrator(ctx)
		if err != nil {
			return err
		}

		out, err := o.Boot(ctx, env)
		if err != nil {
			// Boot's error collects non-fatal load and persistence
			// failures; the outcome below already reflects them and is
			// still printed.
			log.Error().Err(err).Msg("boot pipeline reported non-fatal errors")
		}

		log.Info().
			Str("target", targetName(out.Target)).
			Str("color", out.Color.String()).
			Str("cmdline", out.Cmdline).
			Msg("boot decision")

		fmt.Printf("target=%s color=%s\n", targetName(out.Target), out.Color)
		if out.Cmdline != "" {
			fmt.Println(out.Cmdline)
		}
		return err
	},
}

func init() {
	addHostFlags(bootCmd)
	addBootEnvFlags(bootCmd)
}
