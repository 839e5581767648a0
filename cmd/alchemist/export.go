package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/alchemist/internal/export"
	"github.com/spf13/cobra"
)

func newExportCommand(root *rootOptions) *cobra.Command {
	var (
		outDir    string
		rulesPath string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "export FILE...",
		Short: "Write one workbook per table kind plus rules.json",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := export.DefaultRules()
			if rulesPath != "" {
				data, err := os.ReadFile(rulesPath)
				if err != nil {
					return fmt.Errorf("read rules: %w", err)
				}
				if rules, err = export.ParseRules(data); err != nil {
					return err
				}
			}

			p := root.pipeline()
			res, err := p.load(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, fe := range res.Failures {
				slog.Warn("file skipped", "file", fe.Name, "error", fe.Err)
			}

			findings := p.engine.Validate(res.Tables)
			if rep := newReport(res, findings); rep.Summary.Blocking && !force {
				if err := writeTextReport(cmd.ErrOrStderr(), res.Tables, rep); err != nil {
					return err
				}
				return errBlocking
			}

			artifacts, err := export.Build(res.Tables, rules)
			if err != nil {
				return err
			}
			if err := export.WriteDir(outDir, artifacts); err != nil {
				return err
			}
			for _, a := range artifacts {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", a.Name, len(a.Data))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "export", "Directory the artifacts are written to")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rules document to export instead of the defaults")
	cmd.Flags().BoolVar(&force, "force", false, "Export even when error findings remain")
	return cmd
}
