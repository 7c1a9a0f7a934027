// Package api wires the HTTP handlers and middleware into a router.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/api/middleware"
)

// Handlers groups the endpoint handlers served by the router. Jobs may be
// nil when background jobs are disabled.
type Handlers struct {
	Transactions *handlers.TransactionsHandler
	Chat         *handlers.ChatHandler
	Jobs         *handlers.JobsHandler
}

// NewRouter registers every route under /api/finance plus /health and wraps
// the result in the standard middleware chain.
func NewRouter(h Handlers, allowedOrigin string, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/finance").Subrouter()
	api.HandleFunc("/test", handlers.Test).Methods(http.MethodGet)
	api.HandleFunc("/chat", h.Chat.Chat).Methods(http.MethodPost)
	api.HandleFunc("/categories", handlers.ListCategories).Methods(http.MethodGet)

	// Transactions endpoints
	api.HandleFunc("/transactions", h.Transactions.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/upload", h.Transactions.Upload).Methods(http.MethodPost)
	api.HandleFunc("/transactions/assign-category", h.Transactions.AssignCategory).Methods(http.MethodPost)
	api.HandleFunc("/transactions/assign", h.Transactions.AssignAll).Methods(http.MethodPost)
	api.HandleFunc("/transactions/split", h.Transactions.Split).Methods(http.MethodPut)
	api.HandleFunc("/transactions/category-chat", h.Chat.CategoryChat).Methods(http.MethodPost)
	api.HandleFunc("/transactions/export.xlsx", h.Transactions.Export).Methods(http.MethodGet)

	// Jobs endpoints
	if h.Jobs != nil {
		api.HandleFunc("/jobs", h.Jobs.ListJobs).Methods(http.MethodGet)
		api.HandleFunc("/jobs/{id}", h.Jobs.GetJob).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// CORS sits inside the router chain so preflight requests never reach
	// method matching.
	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(allowedOrigin)(r),
			),
		),
	)
}
