package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nao1215/redirscan/internal/alert"
	"github.com/nao1215/redirscan/internal/config"
	"github.com/nao1215/redirscan/internal/database"
	"github.com/nao1215/redirscan/internal/enrich"
	"github.com/nao1215/redirscan/internal/export"
	"github.com/nao1215/redirscan/internal/fetch"
	"github.com/nao1215/redirscan/internal/heuristics"
	"github.com/nao1215/redirscan/internal/history"
	rlog "github.com/nao1215/redirscan/internal/log"
	"github.com/nao1215/redirscan/internal/model"
	"github.com/nao1215/redirscan/internal/pipeline"
	"github.com/nao1215/redirscan/internal/trace"
	"github.com/nao1215/redirscan/internal/transport"
)

// errAllFailed is returned when no URL of a run could be analyzed.
var errAllFailed = errors.New("every analysis failed")

// NewTraceCmd creates the trace command.
func NewTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace [url...]",
		Short: "Trace the redirect chain of one or more URLs",
		Long: `Trace follows the redirect chain of each URL one hop at a time.

For every hop the status code, timing, server and content type are recorded.
The final destination is resolved in DNS (skipped with --proxy) and, with
--deep, its TLS certificate
and page content are inspected. The chain is then scored against heuristics:
- URL shortener chains
- Suspicious top-level domains and punycode hosts
- HTTPS downgrades and unupgraded plain HTTP
- Excessive redirects and heavy tracking parameters

Examples:
  # Trace a single URL
  redirscan trace https://bit.ly/example

  # Deep analysis with response headers
  redirscan trace --deep --headers https://bit.ly/example

  # Export a Mermaid diagram of the chain
  redirscan trace -f diagram -o chain.mmd https://bit.ly/example

  # Trace every URL in a file, 10 at a time
  redirscan trace --list urls.txt --batch 10

  # Archive the result for later comparison
  redirscan trace --save https://bit.ly/example`,
		Args: cobra.ArbitraryArgs,
		RunE: runTraceCmd,
	}

	cmd.Flags().IntP("timeout", "t", int(config.DefaultTimeout.Seconds()),
		"Request timeout in seconds (1-30)")
	cmd.Flags().BoolP("deep", "d", false,
		"Inspect the final destination's certificate and content")
	cmd.Flags().BoolP("headers", "H", false,
		"Include all response headers of every hop")
	cmd.Flags().StringP("format", "f", config.DefaultExportFormat,
		"Export format: "+strings.Join(config.ExportFormats, "|"))
	cmd.Flags().StringP("output", "o", "",
		"Export file path (default: a timestamped file in the data directory)")

	cmd.Flags().StringP("list", "l", "",
		"File with one URL per line; blank lines and # comments are skipped")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of URLs analyzed concurrently")
	cmd.Flags().Float64("rate", config.DefaultRateLimit,
		"Maximum requests per second per host (0 disables the limit)")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .redirscan in current or home directory)")
	cmd.Flags().StringP("proxy", "x", "",
		"Proxy URL (socks5://, socks5h://, http:// or https://); disables DNS enrichment")
	cmd.Flags().String("alert-webhook", "",
		"POST a JSON alert to this URL when indicators are raised")
	cmd.Flags().BoolP("save", "s", false,
		"Archive the report in the local database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the report archive")
	cmd.Flags().Bool("no-color", false,
		"Disable colored output")

	return cmd
}

func runTraceCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildTraceConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runTrace(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger)
}

// getPersistentBool reads a root persistent flag from cmd or its parents.
func getPersistentBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildTraceConfig creates a Config from cobra command flags and the
// optional configuration file.
func buildTraceConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	timeoutSec, err := flags.GetInt("timeout")
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	if cfg.Deep, err = flags.GetBool("deep"); err != nil {
		return nil, err
	}
	if cfg.IncludeHeaders, err = flags.GetBool("headers"); err != nil {
		return nil, err
	}
	if cfg.ExportFormat, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.AlertWebhook, err = flags.GetString("alert-webhook"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.NoColor, err = flags.GetBool("no-color"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getPersistentBool(cmd, "verbose")
	cfg.LogJSON = getPersistentBool(cmd, "log-json")

	// An explicit --config must exist; implicit locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Targets = append(cfg.Targets, args...)
	listPath, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	if listPath != "" {
		urls, err := readURLList(listPath)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, urls...)
	}
	for i, target := range cfg.Targets {
		cfg.Targets[i] = strings.TrimSpace(target)
	}

	return cfg, nil
}

// readURLList reads one URL per line, skipping blank lines and # comments.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}

// setupLogger creates the secure logger on stderr.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return rlog.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}
	return rlog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
}

// runTrace wires the analysis components and analyzes every target.
func runTrace(ctx context.Context, out, errOut io.Writer, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting trace",
		"targets", len(cfg.Targets),
		"deep", cfg.Deep,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	client, err := transport.NewClient(transport.Options{
		ProxyURL:   cfg.ProxyURL,
		UserAgent:  cfg.UserAgent,
		RateLimit:  cfg.RateLimit,
		HostConfig: cfg.HostConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if err := client.CheckProxy(ctx); err != nil {
		return err
	}
	httpClient := client.NewHTTPClient(cfg.Timeout)

	components := pipeline.Components{
		Tracer: trace.New(
			fetch.New(httpClient, fetch.WithTimeout(cfg.Timeout), fetch.WithLogger(logger)),
			trace.WithHeaders(cfg.IncludeHeaders),
			trace.WithLogger(logger),
		),
		Enricher: enrich.NewEnricher(
			newResolver(cfg, logger),
			enrich.NewCertInspector(client.DialContext, 0),
			enrich.NewContentAnalyzer(httpClient, cfg.MaxBodySize),
			enrich.WithLogger(logger),
		),
		Engine: newEngine(cfg),
		Deep:   cfg.Deep,
		Logger: logger,
	}

	cache := history.New()
	cache.Start()
	defer cache.Stop()
	components.History = cache

	if cfg.AlertWebhook != "" {
		components.Notifier = alert.NewNotifier(cfg.AlertWebhook, &http.Client{Timeout: alert.DefaultTimeout})
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		components.Archive = db
	}

	newPipeline := func() *pipeline.Pipeline {
		return pipeline.NewAnalysis(components)
	}

	if len(cfg.Targets) == 1 {
		return runSingleTrace(ctx, out, cfg, newPipeline, cfg.Targets[0])
	}
	return runBatchTrace(ctx, out, errOut, cfg, newPipeline, logger)
}

// newResolver returns nil when a proxy is configured: DNS queries bypass the
// proxy and would reveal the traced host.
func newResolver(cfg *config.Config, logger *slog.Logger) enrich.Resolver {
	if cfg.ProxyURL != "" {
		logger.Debug("dns enrichment disabled behind proxy", "proxy", cfg.ProxyURL)
		return nil
	}
	return enrich.NewDNSResolver(cfg.Timeout, nil)
}

// newEngine builds the heuristics engine with the configured extra lists.
func newEngine(cfg *config.Config) *heuristics.Engine {
	var opts []heuristics.Option
	if cfg.File != nil {
		opts = append(opts,
			heuristics.WithExtraShorteners(cfg.File.ExtraShorteners...),
			heuristics.WithExtraSuspiciousTLDs(cfg.File.ExtraSuspiciousTLDs...),
		)
	}
	return heuristics.NewEngine(opts...)
}

func runSingleTrace(ctx context.Context, out io.Writer, cfg *config.Config, newPipeline func() *pipeline.Pipeline, target string) error {
	report := model.NewReport(target)
	if err := newPipeline().Execute(ctx, report); err != nil {
		return fmt.Errorf("failed to trace %s: %w", target, err)
	}
	return outputReport(out, cfg, report, -1)
}

func runBatchTrace(ctx context.Context, out, errOut io.Writer, cfg *config.Config, newPipeline func() *pipeline.Pipeline, logger *slog.Logger) error {
	opts := []pipeline.BatchOption{
		pipeline.WithBatchLogger(logger),
		pipeline.WithConcurrency(cfg.BatchSize),
	}
	if isTerminal(errOut) {
		opts = append(opts, pipeline.WithProgress(errOut))
	}

	results, err := pipeline.NewBatchProcessor(newPipeline, opts...).ProcessBatch(ctx, cfg.Targets)
	if err != nil {
		return err
	}

	var failed int
	var exportErrs []error
	for i, result := range results {
		if result.Err != nil {
			failed++
			fmt.Fprintf(errOut, "Trace error for %s: %v\n", result.URL, result.Err)
			continue
		}
		if err := outputReport(out, cfg, result.Report, i); err != nil {
			exportErrs = append(exportErrs, err)
		}
	}

	fmt.Fprintf(out, "\nAnalyzed %d of %d URLs\n", len(results)-failed, len(results))
	if failed == len(results) {
		return errAllFailed
	}
	return errors.Join(exportErrs...)
}

// outputReport prints the inline summary and writes the export file, if any.
// index is the position in a batch, or -1 for a single URL.
func outputReport(out io.Writer, cfg *config.Config, report *model.Report, index int) error {
	summary := export.NewSummaryWriter(out,
		export.WithHeaders(cfg.IncludeHeaders),
		export.WithColor(!cfg.NoColor && isTerminal(out)),
	)
	if _, err := summary.Write(report); err != nil {
		return err
	}

	if cfg.ExportFormat == config.ExportNone {
		return nil
	}
	path := exportPath(cfg, report, index)
	if err := writeExport(path, cfg.ExportFormat, report); err != nil {
		return fmt.Errorf("failed to export %s: %w", report.Chain.InitialURL, err)
	}
	fmt.Fprintf(out, "Exported %s report to %s\n", cfg.ExportFormat, path)
	return nil
}

// exportPath returns where the export of report goes. Batch exports get the
// 1-based position appended to the file name.
func exportPath(cfg *config.Config, report *model.Report, index int) string {
	ext := export.Extension(cfg.ExportFormat)
	path := cfg.OutputFile
	if path == "" {
		name := fmt.Sprintf("redirscan-%s.%s", report.AnalyzedAt.Format("20060102-150405"), ext)
		path = filepath.Join(cfg.DBDir, "exports", name)
	}
	if index < 0 {
		return path
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	suffix := filepath.Ext(path)
	if suffix == "" {
		suffix = "." + ext
	}
	return fmt.Sprintf("%s-%d%s", base, index+1, suffix)
}

func writeExport(path, format string, report *model.Report) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain cookies and tokens from captured headers.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w, err := export.New(format, f)
	if err != nil {
		return err
	}
	_, err = w.Write(report)
	return err
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
