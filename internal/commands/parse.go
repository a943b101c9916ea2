package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/summary"
)

type parseOutput struct {
	File   string              `json:"file"`
	Error  string              `json:"error,omitempty"`
	Result *parser.ParseResult `json:"result,omitempty"`
}

func newParseCommand(opts *globalOptions) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse statements and print the extracted transactions as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := parseAll(cmd, opts, args, workers)
			if err != nil {
				return err
			}
			out := make([]parseOutput, len(results))
			for i, r := range results {
				out[i] = parseOutput{File: r.Name, Result: r.Result}
				if r.Err != nil {
					out[i].Error = r.Err.Error()
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "files parsed in parallel (0 = one per CPU)")

	return cmd
}

func newSummarizeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize FILE...",
		Short: "Print totals, date range and currencies across statements",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := parseAll(cmd, opts, args, 0)
			if err != nil {
				return err
			}
			var txs []parser.ParsedTransaction
			for _, r := range results {
				if r.Err != nil {
					return fmt.Errorf("%s: %w", r.Name, r.Err)
				}
				txs = append(txs, r.Result.Transactions...)
			}
			return writeJSON(cmd.OutOrStdout(), summary.Summarize(txs))
		},
	}
}

func parseAll(cmd *cobra.Command, opts *globalOptions, paths []string, workers int) ([]parser.FileResult, error) {
	files, err := readFiles(paths)
	if err != nil {
		return nil, err
	}
	return opts.engine(cmd).ParseFiles(cmd.Context(), files, workers)
}
