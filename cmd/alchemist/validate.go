package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/spf13/cobra"
)

type report struct {
	Findings []core.Finding `json:"findings"`
	Summary  core.Summary   `json:"summary"`
	Failures []failure      `json:"failures"`
}

type failure struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func newReport(res core.BatchResult, findings []core.Finding) report {
	r := report{
		Findings: findings,
		Summary:  core.Summarize(findings),
		Failures: make([]failure, 0, len(res.Failures)),
	}
	for _, fe := range res.Failures {
		msg := core.MapError(fe.Err)
		r.Failures = append(r.Failures, failure{Index: fe.Index, Name: fe.Name, Message: msg.Message, Code: msg.Code})
	}
	return r
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate table files and report findings",
		Long: "Validate normalizes every file, runs the cross-table checks and prints the findings.\n" +
			"The command exits with status 1 when any error finding is reported.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q: want text or json", format)
			}
			p := root.pipeline()
			res, err := p.load(cmd.Context(), args)
			if err != nil {
				return err
			}
			rep := newReport(res, p.engine.Validate(res.Tables))

			if format == "json" {
				err = writeJSONReport(cmd.OutOrStdout(), rep)
			} else {
				err = writeTextReport(cmd.OutOrStdout(), res.Tables, rep)
			}
			if err != nil {
				return err
			}
			if rep.Summary.Blocking {
				return errBlocking
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func writeJSONReport(w io.Writer, rep report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func writeTextReport(w io.Writer, tables []core.Table, rep report) error {
	for _, f := range rep.Failures {
		if _, err := fmt.Fprintf(w, "FAILED  %s: %s (%s)\n", f.Name, f.Message, f.Code); err != nil {
			return err
		}
	}
	for _, f := range rep.Findings {
		where := fmt.Sprintf("%s row %d", tables[f.TableIndex].Name, f.Row+1)
		if f.TableLevel {
			where = tables[f.TableIndex].Name
		}
		if _, err := fmt.Fprintf(w, "%-7s %s %s [%s]: %s\n", f.Severity, f.Code, where, f.Column, f.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d table(s), %d error(s), %d warning(s)\n",
		len(tables), rep.Summary.Errors, rep.Summary.Warnings)
	return err
}
