// Package main implements taskctl, a terminal client for the task dashboard.
package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "taskctl",
	Short:         "Manage dashboard tasks from the terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(cmd.ErrOrStderr())
		if globalVerbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	},
}

var (
	globalConfigPath string
	globalAPIURL     string
	globalToken      string
	globalTimeout    string
	globalVerbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "Config file (default $TASKCTL_CONFIG or ~/.config/taskctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalAPIURL, "api-url", "", "Task API base URL")
	rootCmd.PersistentFlags().StringVar(&globalToken, "token", "", "Bearer token for the task API")
	rootCmd.PersistentFlags().StringVar(&globalTimeout, "timeout", "", "Per-request timeout (e.g. 10s)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "Log request metrics")
}
