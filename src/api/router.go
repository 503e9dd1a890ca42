package api

import (
	"finsync/src/handlers"
	"finsync/src/middleware"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Runs          handlers.RunSource
	Summaries     handlers.SummarySource
	Items         handlers.ItemLister
	Accounts      handlers.AccountDirectory
	Notifications handlers.RetryCandidateLister
	WebhookEvents handlers.WebhookEventStore
	Cache         handlers.CacheClearer
	// Verifier may be nil to accept unsigned webhooks.
	Verifier       handlers.WebhookVerifier
	Environment    string
	DigestChannel  string
	AdminToken     string
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Post("/webhooks/plaid", handlers.PlaidWebhook(d.WebhookEvents, d.Verifier, d.Environment, d.Logger))

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminTokenMiddleware(d.AdminToken))

		r.Handle("/metrics", promhttp.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Get("/runs/{run_id}", handlers.GetRun(d.Runs, d.Summaries, d.Logger))

			r.Get("/items", handlers.ListItems(d.Items, d.Logger))
			r.Get("/items/{item_id}/accounts", handlers.ListItemAccounts(d.Accounts, d.Logger))
			r.Patch("/accounts/{account_id}", handlers.UpdateAccount(d.Accounts, d.Logger))

			r.Get("/notifications/retry-candidates", handlers.RetryCandidates(d.Notifications, d.DigestChannel, d.Logger))

			r.Post("/cache/credentials/clear", handlers.ClearCredentialCache(d.Cache, d.Logger))
		})
	})

	return r
}
