package handler

import (
	"net/http"

	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/service"

	"go.uber.org/zap"
)

func dashboardHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/dashboard")
		defer span.End()

		summary, err := svc.Summary(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		observability.AnnotateRequest(ctx,
			zap.Int("recent_transactions", len(summary.RecentTransactions)),
			zap.Int("skipped_records", summary.Skipped),
		)
		writeJSON(w, http.StatusOK, summary)
	}
}

func monthlyHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/transactions/monthly")
		defer span.End()

		months, err := svc.Monthly(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		observability.AnnotateRequest(ctx, zap.Int("months", len(months)))
		writeJSON(w, http.StatusOK, months)
	}
}
