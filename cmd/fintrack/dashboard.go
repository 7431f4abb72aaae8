package main

import (
	"github.com/boddenberg/fintrack-go/internal/aggregate"
	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/report"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newDashboardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals, monthly series, category breakdown and recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}

			api := a.client()
			var (
				summary *domain.DashboardSummary
				cats    []domain.Category
				txs     []domain.Transaction
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				summary, err = api.Dashboard(ctx)
				return err
			})
			g.Go(func() (err error) {
				cats, err = api.ListCategories(ctx)
				return err
			})
			g.Go(func() (err error) {
				txs, err = api.ListAllTransactions(ctx, 0)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			// The breakdown is recomputed over the full history so labels
			// follow the category list fetched alongside it.
			summary.CategoryBreakdown = aggregate.New(nil).CategoryBreakdown(txs, cats)
			return report.Dashboard(cmd.OutOrStdout(), format, summary)
		},
	}
	addFormatFlag(cmd, a)
	return cmd
}
