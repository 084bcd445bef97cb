// Command injectest composes adversarial payloads into an HTTP request
// template, dispatches them against a target, and reports every response
// the verification chain flags.
//
// Exit codes: 0 = scan clean, 1 = findings reported, 2 = configuration or
// runtime error.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/injectest/injectest/pkg/config"
	"github.com/injectest/injectest/pkg/dispatch"
	"github.com/injectest/injectest/pkg/finding"
	"github.com/injectest/injectest/pkg/inject"
	"github.com/injectest/injectest/pkg/jsonutil"
	"github.com/injectest/injectest/pkg/metrics"
	"github.com/injectest/injectest/pkg/scan"
)

const (
	exitClean    = 0
	exitFindings = 1
	exitError    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.ParseFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, "injectest:", err)
		return exitError
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	report, err := execute(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "injectest:", err)
		return exitError
	}

	if err := render(cfg, report, stdout); err != nil {
		fmt.Fprintln(stderr, "injectest:", err)
		return exitError
	}

	if !report.Empty() {
		return exitFindings
	}
	return exitClean
}

// execute assembles the scan from config and runs it to completion.
func execute(cfg *config.Config, logger *slog.Logger) (*finding.Report, error) {
	tmpl, err := cfg.BuildTemplate()
	if err != nil {
		return nil, err
	}
	points, err := cfg.BuildPoints()
	if err != nil {
		return nil, err
	}
	gen, err := cfg.BuildGenerator()
	if err != nil {
		return nil, err
	}

	composer, err := inject.NewComposer(tmpl, gen, points...)
	if err != nil {
		return nil, err
	}
	dispatcher, err := dispatch.NewHTTP(dispatch.Config{ClientConfig: cfg.ClientConfig()})
	if err != nil {
		return nil, err
	}

	session, err := scan.New(composer, dispatcher, cfg.BuildPredicates(), scan.Config{
		Concurrency:    cfg.Concurrency,
		RequestTimeout: cfg.Timeout.Std(),
		Deadline:       cfg.Deadline.Std(),
		Budget:         cfg.Budget,
		RateLimit:      cfg.RateLimit,
		Policy:         cfg.PolicyValue(),
		Logger:         logger,
		Metrics:        metrics.NewCollector(),
	})
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := session.Run(ctx)
	if err != nil && report == nil {
		return nil, err
	}
	if err != nil {
		logger.Warn("scan ended early", slog.String("error", err.Error()))
	}
	return report, nil
}

// render writes the report in the configured format.
func render(cfg *config.Config, report *finding.Report, stdout io.Writer) error {
	out := stdout
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if cfg.OutputFormat == "json" {
		data, err := jsonutil.MarshalIndent(report, "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return renderConsole(report, out)
}

func renderConsole(report *finding.Report, w io.Writer) error {
	fmt.Fprintf(w, "target:       %s\n", report.Target)
	fmt.Fprintf(w, "attempts:     %d\n", report.Attempts)
	fmt.Fprintf(w, "inconclusive: %d\n", len(report.Inconclusive))
	fmt.Fprintf(w, "findings:     %d\n", len(report.Findings))
	if report.Empty() {
		fmt.Fprintln(w, "result:       PASS")
		return nil
	}
	fmt.Fprintf(w, "result:       FAIL (max severity %s)\n\n", report.MaxSeverity())
	for i, f := range report.Findings {
		fmt.Fprintf(w, "[%d] %s %s: %s\n", i+1, f.Severity, f.Detector, f.Message)
		fmt.Fprintf(w, "    payload:  %q\n", f.Evidence.Payload)
		if f.Evidence.Request != "" {
			fmt.Fprintf(w, "    request:  %s\n", f.Evidence.Request)
		}
		if f.Evidence.Response != "" {
			fmt.Fprintf(w, "    response: %s\n", f.Evidence.Response)
		}
	}
	return nil
}
