package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
)

// csvTransaction is the normalized export row.
type csvTransaction struct {
	File          string `csv:"file"`
	Row           int    `csv:"row"`
	Date          string `csv:"date"`
	Amount        string `csv:"amount"`
	Currency      string `csv:"currency"`
	Title         string `csv:"title"`
	Merchant      string `csv:"merchant"`
	CategoryHint  string `csv:"category_hint"`
	DateDefaulted bool   `csv:"date_defaulted"`
}

func newExportCommand(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export FILE...",
		Short: "Write the extracted transactions as a normalized CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := parseAll(cmd, opts, args, 0)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return exportCSV(w, results)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file, - for stdout")

	return cmd
}

func exportCSV(w io.Writer, results []parser.FileResult) error {
	var rows []csvTransaction
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("%s: %w", r.Name, r.Err)
		}
		for _, tx := range r.Result.Transactions {
			rows = append(rows, csvTransaction{
				File:          r.Name,
				Row:           tx.Row,
				Date:          tx.Date,
				Amount:        tx.SignedAmount().StringFixed(2),
				Currency:      tx.Currency,
				Title:         tx.Title,
				Merchant:      tx.Merchant,
				CategoryHint:  tx.CategoryHint,
				DateDefaulted: tx.DateDefaulted,
			})
		}
	}
	if len(rows) == 0 {
		return fmt.Errorf("no transactions extracted")
	}
	return gocsv.Marshal(rows, w)
}
