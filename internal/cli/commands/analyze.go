package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/corrosion/pkg/analyzer"
	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/detector"
	"github.com/ccollicutt/corrosion/pkg/metrics"
	"github.com/ccollicutt/corrosion/pkg/output"
	"github.com/ccollicutt/corrosion/pkg/source"
	"github.com/ccollicutt/corrosion/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	Output      string
	Out         string
	Workers     int
	MetricsFile string
	NoDetect    bool
	Verbose     bool
	Quiet       bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <config-file>",
		Short: "Build the polarization resistance series for a set of measurements",
		Long: `Extract every measurement file matched by the configuration and fit the
polarization resistance of each LPR sweep.

Files are assigned a kind (EIS, OCP, LPR) by filename pattern. Files no
pattern matches are identified from their header unless --no-detect is set.

Exit codes:
  0 - All files extracted and fitted
  1 - One or more files failed
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|xlsx)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the report to a file instead of stdout (required for xlsx)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Files processed in parallel (overrides config)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format")
	cmd.Flags().BoolVar(&opts.NoDetect, "no-detect", false, "Skip files no filename pattern matches instead of reading their header")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show per-file details and warnings")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_failures", "When to fire webhook (on_failures|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}
	if output.Binary(formatter) && opts.Out == "" {
		return fmt.Errorf("%s output requires --out", formatter.Name())
	}

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(&cfg.Logging)
	defer func() { _ = logger.Sync() }()

	files, unclassified, err := source.Discover(cfg.Sources, cfg.Classification.Classifier())
	if err != nil {
		return err
	}

	skipped := unclassified
	if !opts.NoDetect && len(unclassified) > 0 {
		detected, rest, err := analyzer.ResolveKinds(ctx, detector.New(), unclassified)
		if err != nil {
			return fmt.Errorf("detecting kinds: %w", err)
		}
		for _, f := range detected {
			logger.Info("kind detected from header", zap.String("file", f.Path), zap.String("kind", string(f.Kind)))
		}
		files = append(files, detected...)
		skipped = rest
	}
	for _, p := range skipped {
		logger.Warn("skipping file with unknown kind", zap.String("file", p))
	}

	if len(files) == 0 {
		return fmt.Errorf("no measurement files matched sources: %v", cfg.Sources)
	}

	recorder := metrics.NewRecorder()
	a, err := analyzer.NewAnalyzer(cfg,
		analyzer.WithWorkers(opts.Workers),
		analyzer.WithLogger(logger),
		analyzer.WithMetrics(recorder),
	)
	if err != nil {
		return fmt.Errorf("creating analyzer: %w", err)
	}

	result, err := a.Analyze(ctx, files)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	result.Metadata.ConfigFile = configPath
	result.Metadata.Skipped = skipped

	report := output.NewReport(result, configPath)

	if err := writeReport(ctx, formatter, report, opts.Out, cmd.OutOrStdout()); err != nil {
		return err
	}

	if opts.MetricsFile != "" {
		if err := recorder.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
	}

	// Send webhooks (errors logged but don't fail analysis)
	sendWebhooks(ctx, cfg, opts, report, logger)

	if report.HasFailures() {
		ExitCode = 1
	}

	return nil
}

// writeReport formats the report to path, or to stdout if path is empty.
func writeReport(ctx context.Context, formatter output.Formatter, report *output.Report, path string, stdout io.Writer) error {
	if path == "" {
		if err := formatter.Format(ctx, report, stdout); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
		return nil
	}

	// #nosec G304 - output path is provided by user via CLI
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := formatter.Format(ctx, report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("formatting output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

func createFormatter(opts *AnalyzeOptions) (output.Formatter, error) {
	return output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged but don't fail the analysis.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *AnalyzeOptions, report *output.Report, logger *zap.Logger) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !shouldFireWebhook(wh.Trigger, report.HasFailures()) {
			continue
		}

		resp := client.Send(ctx, report, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			logger.Info("webhook sent",
				zap.String("webhook", name),
				zap.Int("status", resp.StatusCode),
				zap.Duration("duration", resp.Duration),
			)
		} else {
			logger.Warn("webhook failed", zap.String("webhook", name), zap.Error(resp.Error))
		}
	}
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnFailures
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

// shouldFireWebhook determines if a webhook should fire based on trigger and failures.
func shouldFireWebhook(trigger config.WebhookTrigger, hasFailures bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasFailures
	}
}
