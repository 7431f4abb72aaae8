package main

import (
	"fmt"
	"os"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/report"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newTransactionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"transaction", "tx"},
		Short:   "Manage transactions",
	}
	cmd.AddCommand(
		newTransactionsListCmd(a),
		newTransactionsAddCmd(a),
		newTransactionsDeleteCmd(a),
		newTransactionsExportCmd(a),
		newTransactionsImportCmd(a),
	)
	return cmd
}

func newTransactionsListCmd(a *app) *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			txs, err := a.client().ListTransactions(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return report.Transactions(cmd.OutOrStdout(), format, txs)
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "number of transactions to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")
	addFormatFlag(cmd, a)
	return cmd
}

func newTransactionsAddCmd(a *app) *cobra.Command {
	var typ, amount, categoryID, description, date string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income or expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseTransactionFlags(typ, amount, categoryID, description, date)
			if err != nil {
				return err
			}
			tx, err := a.client().CreateTransaction(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s of %s on %s (%s)\n", tx.Type, tx.Amount.StringFixed(2), tx.Date, tx.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "income or expense")
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount, e.g. 12.50")
	cmd.Flags().StringVar(&categoryID, "category", "", "category id")
	cmd.Flags().StringVar(&description, "description", "", "free text")
	cmd.Flags().StringVar(&date, "date", "", "YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func parseTransactionFlags(typ, amount, categoryID, description, date string) (domain.TransactionInput, error) {
	in := domain.TransactionInput{
		Type:        domain.TransactionType(typ),
		CategoryID:  categoryID,
		Description: description,
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return in, &domain.ErrValidation{Field: "amount", Message: fmt.Sprintf("%q is not a number", amount)}
	}
	in.Amount = amt

	if date == "" {
		in.Date = domain.DateOf(time.Now())
	} else if in.Date, err = domain.ParseDate(date); err != nil {
		return in, &domain.ErrValidation{Field: "date", Message: err.Error()}
	}
	return in, nil
}

func newTransactionsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteTransaction(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted transaction %s\n", args[0])
			return nil
		},
	}
}

func newTransactionsExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every transaction to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := a.client().ListAllTransactions(cmd.Context(), 0)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return report.WriteCSV(cmd.OutOrStdout(), txs)
			}
			if err := exportFile(out, txs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d transactions to %s\n", len(txs), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

// exportFile writes txs to path. Write and close errors are both returned.
func exportFile(path string, txs []domain.Transaction) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return report.WriteCSV(f, txs)
}

func newTransactionsImportCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create transactions from a CSV file in the export layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("open %s: %w", in, err)
			}
			defer f.Close()

			inputs, err := report.ReadCSV(f)
			if err != nil {
				return err
			}

			api := a.client()
			for i, input := range inputs {
				if _, err := api.CreateTransaction(cmd.Context(), input); err != nil {
					return fmt.Errorf("row %d: %w (%d imported)", i+1, err, i)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions\n", len(inputs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "CSV file to read")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
