package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vbboot/internal/fwvars"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted state this core tracks across boots",
	Long: `status reads BootState and the magic-key timeout firmware variables,
the slot controller's persisted metadata, and the watchdog counter, without
running target selection or the boot pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		o, err := buildOrchestrator(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("policy: production=%v ab_enabled=%v recovery_in_boot_partition=%v\n",
			policy.Production, policy.ABEnabled, policy.RecoveryInBootPartition)

		if raw, err := o.FW.Get(ctx, fwvars.BootState); err == nil && len(raw) == 1 {
			fmt.Printf("boot_state: %d\n", raw[0])
		} else {
			fmt.Println("boot_state: (unset)")
		}

		if raw, err := o.FW.Get(ctx, fwvars.MagicKeyTimeout); err == nil {
			fmt.Printf("magic_key_timeout_ms: %d\n", fwvars.DecodeMagicKeyTimeoutMS(raw))
		} else {
			fmt.Printf("magic_key_timeout_ms: %d (default)\n", fwvars.DecodeMagicKeyTimeoutMS(nil))
		}

		fmt.Printf("active_slot: %s\n", o.Slots.GetActive())

		if st, err := o.Watchdog.Load(ctx); err == nil {
			fmt.Printf("watchdog_counter: %d (last: %s)\n", st.Counter, st.TimeRef.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

func init() {
	addHostFlags(statusCmd)
}
