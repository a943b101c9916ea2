package commands

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/service"
)

type importOutput struct {
	Import   *service.ImportResult `json:"import"`
	Approved int                   `json:"approved,omitempty"`
	Batch    *service.BatchView    `json:"batch,omitempty"`
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var (
		account string
		approve bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Dry-run the import pipeline in memory and print the resulting batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := uuid.New()
			if account != "" {
				parsed, err := uuid.Parse(account)
				if err != nil {
					return err
				}
				accountID = parsed
			}
			files, err := readFiles(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc := service.NewImportService(opts.engine(cmd), repository.NewMemoryImportRepository(), opts.logger(cmd))
			res, err := svc.ImportFiles(ctx, accountID, files)
			if err != nil {
				return err
			}
			out := importOutput{Import: res}

			if approve {
				if out.Approved, err = svc.ApproveBatch(ctx, res.BatchID); err != nil {
					return err
				}
			}
			if out.Batch, err = svc.GetBatch(ctx, res.BatchID); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "target account ID (random when empty)")
	cmd.Flags().BoolVar(&approve, "approve", false, "approve every row after import")

	return cmd
}
