package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/statementgen"
)

var layouts = map[string]statementgen.Layout{
	"english": statementgen.LayoutEnglish,
	"italian": statementgen.LayoutItalian,
	"split":   statementgen.LayoutSplit,
}

func newGenerateCommand() *cobra.Command {
	var (
		layout   string
		rows     int
		currency string
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a synthetic statement export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, ok := layouts[strings.ToLower(layout)]
			if !ok {
				return fmt.Errorf("unknown layout %q (want english, italian or split)", layout)
			}
			if rows <= 0 {
				return fmt.Errorf("--rows must be positive")
			}
			st := statementgen.New(seed).Statement(l, rows, strings.ToUpper(currency))
			_, err := io.WriteString(cmd.OutOrStdout(), st.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&layout, "layout", "english", "english, italian or split")
	cmd.Flags().IntVar(&rows, "rows", 20, "number of transactions")
	cmd.Flags().StringVar(&currency, "currency", "EUR", "ISO currency code")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 for a random one")

	return cmd
}
