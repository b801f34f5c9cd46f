package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/detector"
	"github.com/ccollicutt/corrosion/pkg/gamry"
	"github.com/ccollicutt/corrosion/pkg/source"
)

// Diagnostic statuses
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common configuration issues",
		Long: `Diagnose common configuration issues.

This command checks your configuration file for common problems:
- Config file syntax and structure
- Source file existence and accessibility
- Filename classification against each file's TAG header
- Timestamp layout against the DATE and TIME fields of a sample file
- Webhook configuration

Example:
  corrosion diagnose config.yaml
  corrosion diagnose -v config.yaml  # verbose output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDiagnose(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	// 1. Check config file existence
	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == StatusError {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 2. Parse config file
	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == StatusError {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 3. Check sources
	results = append(results, checkSources(cfg)...)

	// 4. Check filename classification against headers
	files, classResults := checkClassification(ctx, cfg, opts)
	results = append(results, classResults...)

	// 5. Check timestamp layout against a sample of each kind
	results = append(results, checkTimestamps(cfg, files, opts)...)

	// 6. Check webhooks configuration
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'corrosion detect <file> --write-config config.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = StatusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusError
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'corrosion detect <file> --write-config config.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		switch {
		case strings.Contains(err.Error(), "yaml"):
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		case strings.Contains(err.Error(), "sources"):
			result.Suggests = []string{
				"Add a sources section to your config",
				"Example: sources:\n  - /data/cell1/*.DTA",
			}
		}
		return nil, result
	}

	result.Status = StatusOK
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Sources: %d", len(cfg.Sources)),
		fmt.Sprintf("Timestamp layout: %s", cfg.Timestamp.Layout),
		fmt.Sprintf("Workers: %d", cfg.Workers),
	}
	return cfg, result
}

func checkSources(cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	totalFiles := 0
	for _, src := range cfg.Sources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Source: %s", src),
		}

		if source.HasMeta(src) {
			matches, err := filepath.Glob(src)
			switch {
			case err != nil:
				result.Status = StatusError
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			case len(matches) == 0:
				result.Status = StatusWarning
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the measurement files exist at this path",
					"Verify the glob pattern syntax",
				}
			default:
				result.Status = StatusOK
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				totalFiles += len(matches)
			}
		} else {
			info, err := os.Stat(src)
			switch {
			case os.IsNotExist(err):
				result.Status = StatusError
				result.Message = "File does not exist"
				result.Suggests = []string{"Check if the file path is correct"}
			case err != nil:
				result.Status = StatusError
				result.Message = fmt.Sprintf("Cannot access file: %v", err)
				result.Suggests = []string{"Check file permissions"}
			case info.IsDir():
				result.Status = StatusError
				result.Message = "Path is a directory, not a file"
				result.Suggests = []string{
					"Use a glob pattern to match files in directory",
					"Example: /data/cell1/*.DTA",
				}
			case info.Size() == 0:
				result.Status = StatusWarning
				result.Message = "File is empty (0 bytes)"
			default:
				result.Status = StatusOK
				result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
				totalFiles++
			}
		}
		results = append(results, result)
	}

	if totalFiles == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Source Files Summary",
			Status:  StatusError,
			Message: "No accessible measurement files found",
			Suggests: []string{
				"Ensure at least one measurement file exists and is readable",
			},
		})
	}

	return results
}

// checkClassification compares each file's filename kind with the kind
// its header names. It returns the files whose kind could be settled.
func checkClassification(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) ([]source.File, []DiagnosticResult) {
	results := []DiagnosticResult{}

	files, unclassified, err := source.Discover(cfg.Sources, cfg.Classification.Classifier())
	if err != nil {
		return nil, []DiagnosticResult{{
			Check:   "Classification",
			Status:  StatusError,
			Message: err.Error(),
		}}
	}

	d := detector.New()
	settled := make([]source.File, 0, len(files)+len(unclassified))

	counts := make(map[gamry.Kind]int)
	for _, f := range files {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Header: %s", filepath.Base(f.Path)),
		}

		det, err := d.DetectFromFile(ctx, f.Path)
		switch {
		case err != nil:
			result.Status = StatusError
			result.Message = fmt.Sprintf("Cannot read file: %v", err)
		case !det.HasMatch():
			result.Status = StatusError
			result.Message = fmt.Sprintf("Named as %s but no header keys found", f.Kind)
			result.Suggests = []string{"Check that the file is an instrument data file"}
		case det.BestMatch().Kind != f.Kind && det.BestMatch().TagMatched:
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("Named as %s but TAG %s says %s", f.Kind, det.Tag, det.BestMatch().Kind)
			result.Suggests = []string{
				"Rename the file or tighten the classification patterns",
			}
		case len(matchFor(det, f.Kind).MissingRequired) > 0:
			result.Status = StatusError
			result.Message = fmt.Sprintf("Missing required %s header keys", f.Kind)
			result.Details = matchFor(det, f.Kind).MissingRequired
		default:
			result.Status = StatusOK
			result.Message = fmt.Sprintf("%s (TAG %s)", f.Kind, det.Tag)
		}

		if result.Status != StatusError {
			settled = append(settled, f)
			counts[f.Kind]++
		}
		if result.Status != StatusOK || opts.Verbose {
			results = append(results, result)
		}
	}

	for _, p := range unclassified {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Unclassified: %s", filepath.Base(p)),
		}
		det, err := d.DetectFromFile(ctx, p)
		switch {
		case err != nil:
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("Matches no pattern and cannot be read: %v", err)
		case det.Confident():
			kind := det.BestMatch().Kind
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("Matches no pattern; header says %s", kind)
			result.Suggests = []string{
				fmt.Sprintf("Widen the %s classification pattern to include this file", strings.ToLower(string(kind))),
			}
			settled = append(settled, source.File{Path: p, Kind: kind})
			counts[kind]++
		default:
			result.Status = StatusWarning
			result.Message = "Matches no pattern and kind cannot be detected; it will be skipped"
		}
		results = append(results, result)
	}

	summary := DiagnosticResult{Check: "Classification"}
	parts := make([]string, 0, len(gamry.Kinds()))
	for _, spec := range gamry.Kinds() {
		parts = append(parts, fmt.Sprintf("%s %d", spec.Kind, counts[spec.Kind]))
	}
	summary.Message = strings.Join(parts, ", ")
	if counts[gamry.KindLPR] == 0 {
		summary.Status = StatusWarning
		summary.Suggests = []string{"No LPR files found; the resistance series will be empty"}
	} else {
		summary.Status = StatusOK
	}
	results = append(results, summary)

	return settled, results
}

func matchFor(det *detector.DetectionResult, kind gamry.Kind) detector.KindMatch {
	for _, m := range det.Matches {
		if m.Kind == kind {
			return m
		}
	}
	return detector.KindMatch{Kind: kind}
}

// checkTimestamps parses DATE and TIME from the first file of each kind.
func checkTimestamps(cfg *config.Config, files []source.File, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}
	parser := cfg.Timestamp.Parser()

	tested := make(map[gamry.Kind]bool)
	for _, f := range files {
		if tested[f.Kind] {
			continue
		}
		tested[f.Kind] = true

		result := DiagnosticResult{
			Check: fmt.Sprintf("Timestamp Test: %s", filepath.Base(f.Path)),
		}

		spec, err := gamry.SpecFor(f.Kind)
		if err != nil {
			continue
		}
		m, err := gamry.ExtractFile(f.Path, spec)
		if err != nil {
			result.Status = StatusError
			result.Message = fmt.Sprintf("Extraction failed: %v", err)
			results = append(results, result)
			continue
		}

		ts, err := parser.Measurement(m)
		if err != nil {
			result.Status = StatusError
			result.Message = "Layout does not match the DATE and TIME fields"
			result.Details = []string{
				fmt.Sprintf("Layout: %s", cfg.Timestamp.Layout),
				fmt.Sprintf("DATE: %s", truncate(m.Field(gamry.FieldDate), 40)),
				fmt.Sprintf("TIME: %s", truncate(m.Field(gamry.FieldTime), 40)),
			}
			result.Suggests = []string{
				"Set timestamp.layout to a Go layout for DATE and TIME joined by a space",
				"Example: \"1/2/2006 15:04:05\"",
			}
			results = append(results, result)
			continue
		}

		result.Status = StatusOK
		result.Message = fmt.Sprintf("Parsed as %s", ts.Format("2006-01-02 15:04:05 MST"))
		if opts.Verbose && len(m.Warnings) > 0 {
			result.Details = m.Warnings
		}
		results = append(results, result)
	}

	return results
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== Corrosion Configuration Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case StatusOK:
			icon = "PASS"
			okCount++
		case StatusWarning:
			icon = "WARN"
			warnCount++
		case StatusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	case warnCount > 0:
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	default:
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  StatusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", webhookName(wh)),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme != "http" && u.Scheme != "https" {
				issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
			} else if u.Host == "" {
				issues = append(issues, "URL must have a host")
			}
		}

		if wh.Trigger != "" {
			switch wh.Trigger {
			case config.WebhookTriggerOnFailures, config.WebhookTriggerAlways, config.WebhookTriggerNever:
			default:
				issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_failures, always, or never)", wh.Trigger))
			}
		}

		// An unset variable expands to itself
		if strings.HasPrefix(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		switch {
		case len(issues) > 0:
			result.Status = StatusError
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		case len(warnings) > 0:
			result.Status = StatusWarning
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		default:
			result.Status = StatusOK
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	// Connectivity is only probed in verbose mode
	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}
			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", webhookName(wh))
			results = append(results, result)
		}
	}

	return results
}

func webhookName(wh config.WebhookConfig) string {
	if wh.Name != "" {
		return wh.Name
	}
	return wh.URL
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
