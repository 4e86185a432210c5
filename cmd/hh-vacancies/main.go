// Command hh-vacancies exports hh.ru vacancy search results to a CSV file.
//
//	hh-vacancies --text "golang" --area 1 --pages 3 --details
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vacancy-tools/hh-vacancy-csv/internal/config"
	"github.com/vacancy-tools/hh-vacancy-csv/internal/runner"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/logging"
	"github.com/vacancy-tools/hh-vacancy-csv/pkg/metrics"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(stdout, "Usage: hh-vacancies --text QUERY [flags]")
			fmt.Fprint(stdout, config.NewFlagSet("hh-vacancies").FlagUsages())
			return exitOK
		}
		fmt.Fprintf(stderr, "hh-vacancies: %v\n", err)
		return exitUsage
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: stderr,
	})
	logger := logging.NewLogger("main")

	report, err := runner.New().Run(ctx, cfg)

	if cfg.MetricsFile != "" {
		if mErr := metrics.WriteTextfile(cfg.MetricsFile); mErr != nil {
			logger.Warn().Err(mErr).Msg("Failed to write metrics file")
		}
	}

	if err != nil {
		logger.Error().Err(err).Msg("Export failed")
		fmt.Fprintf(stderr, "hh-vacancies: %v\n", err)
		return exitFailed
	}

	if report.Partial {
		fmt.Fprintf(stderr, "warning: search stopped early (%v); the file holds partial results\n", report.PageErr)
	}
	if report.DetailsFailed > 0 {
		fmt.Fprintf(stderr, "warning: %d of %d vacancy details could not be fetched\n",
			report.DetailsFailed, report.DetailsRequested)
	}
	fmt.Fprintf(stdout, "Saved %d vacancies to %s\n", report.Rows, report.Path)
	return exitOK
}
