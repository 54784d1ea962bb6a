package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"vbboot/internal/config"
)

var (
	cfgFile  string
	logLevel string
	policy   config.Policy
)

var rootCmd = &cobra.Command{
	Use:   "vbboot",
	Short: "Verified boot decision core for a UEFI-resident bootloader",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging()
		p, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		policy = p
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "policy file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(selectTargetCmd)
	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(fastbootCmd)
	rootCmd.AddCommand(statusCmd)
}

func initLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	switch logLevel {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
