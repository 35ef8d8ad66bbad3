package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/infra/observability"
	"github.com/kordbank/ledger-go/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Webhook endpoints live outside the JWT group: their authenticity
// gate is the provider signature, not a bearer token.
func NewRouter(svc *service.LedgerService, verifiers *Verifiers, jwtSecret string, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Provider webhooks (signature-gated) ---
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/card-processor", cardProcessorWebhookHandler(svc, verifiers, metrics, logger))
		r.Post("/bank-rail", bankRailWebhookHandler(svc, verifiers, metrics, logger))
		r.Post("/core-banking", coreBankingWebhookHandler(svc, verifiers, metrics, logger))
		r.Post("/card-network", cardNetworkWebhookHandler(svc, verifiers, metrics, logger))
	})

	// --- API v1 (JWT-protected) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret, logger))

		// Transfers
		r.Post("/transfers", initiateTransferHandler(svc, logger))
		r.Post("/transfers/{transactionId}/confirm", confirmTransferHandler(svc, logger))
		r.Post("/transfers/{transactionId}/cancel", cancelTransferHandler(svc, logger))

		// Card transactions
		r.Post("/cards/{cardId}/transactions", createCardTransactionHandler(svc, logger))
		r.Post("/cards/{cardId}/freeze", freezeCardHandler(svc, logger))
		r.Post("/cards/{cardId}/unfreeze", unfreezeCardHandler(svc, logger))
		r.Get("/card-transactions/pending", listPendingAuthorizationsHandler(svc, logger))
		r.Post("/card-transactions/{transactionId}/post", postCardTransactionHandler(svc, logger))
		r.Post("/card-transactions/{transactionId}/void", voidCardTransactionHandler(svc, logger))

		// Query layer
		r.Get("/transactions", listTransactionsHandler(svc, logger))
		r.Get("/transactions/{transactionId}", getTransactionHandler(svc, logger))
		r.Get("/accounts", listAccountsHandler(svc, logger))
		r.Get("/accounts/{accountId}", getAccountHandler(svc, logger))

		// Operational counters
		r.Get("/metrics/settlements", settlementMetricsHandler(metrics))
	})

	return r
}

func healthzHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Health(r.Context()); err != nil {
			logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
