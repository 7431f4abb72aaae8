package main

import (
	"net/http"
	"time"

	"github.com/boddenberg/fintrack-go/internal/config"
	"github.com/boddenberg/fintrack-go/internal/infra/client"
	"github.com/boddenberg/fintrack-go/internal/infra/resilience"
	"github.com/boddenberg/fintrack-go/internal/report"

	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	cfg     *config.Config
	apiURL  string
	timeout time.Duration
	format  string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "fintrack",
		Short: "Personal finance tracker",
		Long: `fintrack records income and expenses under categories and summarizes
them on a dashboard. "fintrack serve" runs the API; every other command is a
client of a running server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".env")
			if err != nil {
				return err
			}
			a.cfg = cfg
			if a.apiURL == "" {
				a.apiURL = cfg.APIURL
			}
			if a.timeout <= 0 {
				a.timeout = cfg.HTTPTimeout
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL (default $FINTRACK_API_URL)")
	cmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "request timeout (default $HTTP_TIMEOUT)")

	cmd.AddCommand(
		newServeCmd(a),
		newDashboardCmd(a),
		newCategoriesCmd(a),
		newTransactionsCmd(a),
	)
	return cmd
}

func (a *app) client() *client.APIClient {
	return client.NewAPIClient(
		&http.Client{Timeout: a.timeout},
		a.apiURL,
		resilience.NewCircuitBreaker("fintrack-api"),
		resilience.Config{
			MaxRetries:     a.cfg.MaxRetries,
			InitialBackoff: a.cfg.InitialBackoff,
		},
	)
}

func (a *app) outputFormat() (report.Format, error) {
	return report.ParseFormat(a.format)
}

func addFormatFlag(cmd *cobra.Command, a *app) {
	cmd.Flags().StringVarP(&a.format, "format", "f", string(report.FormatTable), "output format: table, json or yaml")
}
