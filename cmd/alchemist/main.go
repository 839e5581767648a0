// Command alchemist validates and exports table files without a server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/logging"
	"github.com/spf13/cobra"
)

// errBlocking is returned when the files carry error findings.
var errBlocking = errors.New("validation errors found")

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errBlocking) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel      string
	logFormat     string
	maxTextLength int
	parallelism   int
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "alchemist",
		Short:         "Validate and export client, worker and task tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			slog.SetDefault(logging.New(stderr, opts.logLevel, opts.logFormat))
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	flags.IntVar(&opts.maxTextLength, "max-text-length", core.DefaultMaxTextLength, "Free-text length above which a warning is raised")
	flags.IntVar(&opts.parallelism, "parallelism", core.DefaultParallelism, "Files parsed at once")

	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

// pipeline is the normalizer and engine built from the root flags.
type pipeline struct {
	normalizer *core.Normalizer
	engine     *core.Engine
}

func (o *rootOptions) pipeline() pipeline {
	catalog := core.DefaultCatalog()
	checks := core.DefaultCheckOptions()
	checks.MaxTextLength = o.maxTextLength
	return pipeline{
		normalizer: core.NewNormalizer(catalog, core.WithParallelism(o.parallelism)),
		engine:     core.NewEngine(catalog, checks),
	}
}

// load reads paths from disk and normalizes them as one batch.
func (p pipeline) load(ctx context.Context, paths []string) (core.BatchResult, error) {
	files := make([]core.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return core.BatchResult{}, fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, core.File{Name: filepath.Base(path), Data: data})
	}
	res := p.normalizer.NormalizeBatch(ctx, files)
	if err := ctx.Err(); err != nil {
		return core.BatchResult{}, err
	}
	return res, nil
}
