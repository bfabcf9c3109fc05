// Package main implements a converter from DOS executables to monitor hex files
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/mzrom/internal/cli"
	"github.com/retroenv/mzrom/internal/config"
	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/fileprocessor"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

const (
	exitUsage   = 1
	exitFailure = 2
)

func main() {
	ctx := app.Context()

	opts, hexOpts, err := cli.ParseHexFlags()
	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	if err != nil {
		fileprocessor.PrintBanner(logger, opts, "makehex", version, commit, date)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			usageErr.ShowUsage()
		} else {
			logger.Error(err.Error())
		}
		os.Exit(exitUsage)
	}

	fileprocessor.PrintBanner(logger, opts, "makehex", version, commit, date)

	if err := fileprocessor.ProcessHex(ctx, logger, opts, hexOpts); err != nil {
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
		} else {
			logger.Error("Conversion failed", log.Stringer("kind", fault.KindOf(err)), log.Err(err))
		}
		os.Exit(exitFailure)
	}
}
