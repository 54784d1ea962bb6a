package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"vbboot/internal/target"
)

var selectTargetCmd = &cobra.Command{
	Use:   "select-target",
	Short: "Run the target selector's priority chain and print the resulting decision",
	Long: `select-target runs only the priority chain: command-line flags,
sentinels, the magic key, the watchdog, BCB, and the one-shot loader
variable. It never loads, verifies, or hands off a kernel image — use
"boot" for the full pipeline.`,
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

		dec, err := o.ChooseTarget(ctx, env)
		if err != nil {
			return fmt.Errorf("vbboot: select-target: %w", err)
		}

		log.Info().Str("target", targetName(dec.Target)).Str("decision", litter.Sdump(dec)).Msg("target selected")
		fmt.Println(targetName(dec.Target))
		return nil
	},
}

func targetName(t target.BootTarget) string {
	for name, tt := range target.NameToTarget {
		if tt == t {
			return name
		}
	}
	return "unknown"
}

func init() {
	addHostFlags(selectTargetCmd)
	addBootEnvFlags(selectTargetCmd)
}
