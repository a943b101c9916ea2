// Package commands implements the statement command line tool.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
)

// Version is set at build time.
var Version = "dev"

type globalOptions struct {
	verbose bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "statement",
		Short:   "Extract transactions from unlabeled bank statement exports",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine diagnostics to stderr")

	rootCmd.AddCommand(
		newParseCommand(opts),
		newSummarizeCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newGenerateCommand(),
	)

	return rootCmd
}

func (o *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *globalOptions) engine(cmd *cobra.Command) *parser.Engine {
	return parser.NewEngine(patterns.Default(), parser.WithLogger(o.logger(cmd)))
}

func readFiles(paths []string) ([]parser.File, error) {
	files := make([]parser.File, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files[i] = parser.File{Name: p, Data: data}
	}
	return files, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
