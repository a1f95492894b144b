package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/archhealth/backend-go/internal/analyzer"
	"github.com/archhealth/backend-go/internal/collector"
	"github.com/archhealth/backend-go/internal/worker"
)

type analyzeFlags struct {
	profile    string
	region     string
	regions    []string
	format     string
	noProgress bool
	timeout    time.Duration
}

var analyzeOpts analyzeFlags

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Collect and score one AWS account from local credentials",
	Long: `analyze runs a single collection and analysis pass using the local AWS
credential chain and prints the Well-Architected report. Nothing is persisted.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.profile, "profile", "", "AWS shared config profile")
	f.StringVar(&analyzeOpts.region, "region", "", "Home region (defaults to AWS_DEFAULT_REGION)")
	f.StringSliceVar(&analyzeOpts.regions, "regions", nil, "Comma-separated regions to scan")
	f.StringVarP(&analyzeOpts.format, "format", "o", "table", "Output format: table or json")
	f.BoolVar(&analyzeOpts.noProgress, "no-progress", false, "Disable the progress spinner")
	f.DurationVar(&analyzeOpts.timeout, "timeout", 10*time.Minute, "Overall timeout")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if analyzeOpts.format != "table" && analyzeOpts.format != "json" {
		return fmt.Errorf("unsupported format %q", analyzeOpts.format)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeOpts.timeout)
	defer cancel()

	region := analyzeOpts.region
	if region == "" {
		region = cfg.AWSRegion
	}
	regions := analyzeOpts.regions
	if len(regions) == 0 {
		regions = cfg.ScanRegions
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	progress := func(msg string) {
		if analyzeOpts.noProgress {
			return
		}
		s.Suffix = " " + msg
		if !s.Active() {
			s.Start()
		}
	}
	defer s.Stop()

	progress("Validating credentials...")
	sess, err := collector.NewProfileSession(ctx, analyzeOpts.profile, region, collector.Options{Regions: regions})
	if err != nil {
		return err
	}
	if err := sess.ValidateSession(ctx); err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}

	progress(fmt.Sprintf("Collecting inventory for account %s...", sess.AccountID()))
	snap, err := worker.Collect(ctx, sess, time.Now(), nil)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	progress("Fetching CPU metrics...")
	snap.CPU = worker.CollectCPU(ctx, sess, snap.Instances, nil)

	progress("Scoring...")
	report, err := analyzer.New().Analyze(ctx, snap.Input(sess.AccountID()))
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	s.Stop()

	if analyzeOpts.format == "json" {
		return writeJSON(os.Stdout, report)
	}
	writeTable(os.Stdout, report, snap.Failed)
	return nil
}
