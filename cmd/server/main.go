package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archhealth/backend-go/internal/config"
	"github.com/archhealth/backend-go/internal/logging"
)

var (
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "archhealth",
	Short: "archhealth scores AWS accounts against the Well-Architected pillars",
	Long: `archhealth collects EC2, S3, Security Hub, GuardDuty, Cost Explorer and
CloudWatch data for each registered tenant, scores the account on six
Well-Architected pillars and produces prioritized recommendations.

Run "serve" for the multi-tenant API or "analyze" for a one-shot report.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logging.Init(level, cfg.LogFormat)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
