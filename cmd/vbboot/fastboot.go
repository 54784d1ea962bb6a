package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"vbboot/internal/orchestrator"
)

var fastbootDeviceInfo string

var fastbootCmd = &cobra.Command{
	Use:   "fastboot",
	Short: "Service the fastboot re-entry loop from stdin",
	Long: `fastboot reads one command per line from stdin (continue, reboot,
reboot-recovery, reboot-bootloader/reboot-fastboot, oem device-info) the
way a USB transport layer would relay them, and prints what each one
resolves to. It does not speak the USB protocol itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		o, err := buildOrchestrator(ctx)
		if err != nil {
			return err
		}

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			res := orchestrator.HandleFastbootCommand(line, fastbootDeviceInfo)

			log.Info().Str("command", line).Int("action", int(res.Action)).Msg("fastboot command handled")

			switch res.Action {
			case orchestrator.ActionStayInLoop:
				if res.Response != "" {
					fmt.Println(res.Response)
				}
			case orchestrator.ActionContinueBoot:
				env, err := bindBootEnv()
				if err != nil {
					return err
				}
				out, err := o.Boot(ctx, env)
				if err != nil {
					log.Error().Err(err).Msg("fastboot: continue boot failed")
				}
				fmt.Println(targetName(out.Target))
				return nil
			case orchestrator.ActionReboot:
				fmt.Println("normal_boot")
				return nil
			case orchestrator.ActionRebootRecovery:
				fmt.Println("recovery")
				return nil
			case orchestrator.ActionRebootBootloader:
				fmt.Println("fastboot")
			}
		}
		return scanner.Err()
	},
}

func init() {
	addHostFlags(fastbootCmd)
	addBootEnvFlags(fastbootCmd)
	fastbootCmd.Flags().StringVar(&fastbootDeviceInfo, "device-info", "", "text returned for oem device-info")
}
