package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcuoli/go-ipmidiscovery/internal/config"
	"github.com/marcuoli/go-ipmidiscovery/internal/logger"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/oui"
	"github.com/marcuoli/go-ipmidiscovery/pkg/ipmidiscovery/report"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, scans and writes the report to stdout. It returns the
// process exit code: 0 on success (even when nothing was found), 2 for
// invalid configuration, 1 for anything else.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ipmidiscovery", flag.ContinueOnError)
	fs.SetOutput(stderr)

	flags := config.Default()
	config.BindFlags(fs, flags)
	configPath := fs.String("config", "", "YAML settings file; flags given explicitly override it")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, ipmidiscovery.VersionInfo())
		return 0
	}

	cfg := flags
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
		config.ApplyFlags(fs, fileCfg, flags)
		cfg = fileCfg
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	cfg.Log.Writer = stderr
	if cfg.Log.Output == "stdout" {
		cfg.Log.Writer = stdout
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(stderr, "error: invalid log level: %v\n", err)
		return 2
	}
	log := logger.WithComponent("ipmidiscovery")
	wireDebug(log, cfg.Log.Debug)

	if cfg.OUIDatabase != "" {
		if err := oui.SetDatabase(cfg.OUIDatabase); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
	}

	scanner := ipmidiscovery.NewScanner(cfg.ScanOptions())
	started := time.Now()
	log.Info().
		Str("targets", describeTargets(cfg)).
		Int("workers", cfg.Workers).
		Msg("scan started")

	results, err := scanner.Scan(ctx)
	if err != nil {
		var cfgErr *ipmidiscovery.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
		log.Error().Err(err).Msg("scan failed")
		return 1
	}

	b := report.Classify(results, cfg.ReportOptions().Order)
	log.Info().
		Int("confirmed", len(b.Confirmed)).
		Int("possible", len(b.Possible)).
		Int("non_matching", len(b.NonMatching)).
		Dur("elapsed", time.Since(started)).
		Msg("scan complete")

	if err := report.Write(stdout, results, cfg.ReportOptions()); err != nil {
		log.Error().Err(err).Msg("write report")
		return 1
	}
	return 0
}

// wireDebug routes library debug messages to log. --debug adds the
// per-probe messages of the subpackages.
func wireDebug(log zerolog.Logger, verbose bool) {
	if log.GetLevel() > zerolog.DebugLevel {
		ipmidiscovery.SetDebugLogger(nil)
		ipmidiscovery.SetDebugLevel(ipmidiscovery.DebugOff)
		return
	}
	ipmidiscovery.SetDebugLogger(func(method ipmidiscovery.Method, format string, args ...interface{}) {
		log.Debug().Str("source", ipmidiscovery.MethodToPrefix(method)).Msgf(format, args...)
	})
	if verbose {
		ipmidiscovery.SetDebugLevel(ipmidiscovery.DebugVerbose)
	} else {
		ipmidiscovery.SetDebugLevel(ipmidiscovery.DebugBasic)
	}
}

func describeTargets(cfg *config.Config) string {
	if cfg.CIDR != "" {
		return cfg.CIDR
	}
	return fmt.Sprintf("%s.%d-%d", cfg.Subnet, cfg.Start, cfg.End)
}
