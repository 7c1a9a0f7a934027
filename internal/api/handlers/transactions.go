package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/categorize"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/report"
	"github.com/dvloznov/finance-assistant/internal/split"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// Uploader loads an uploaded export into the store.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) ([]domain.Transaction, error)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	store      *store.Store
	uploader   Uploader
	assigner   *categorize.Client
	publisher  jobs.Publisher
	batchLimit int
	maxUpload  int64
	log        zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. publisher may be
// nil, in which case async batch requests are rejected.
func NewTransactionsHandler(
	s *store.Store,
	uploader Uploader,
	assigner *categorize.Client,
	publisher jobs.Publisher,
	batchLimit int,
	maxUpload int64,
	log zerolog.Logger,
) *TransactionsHandler {
	return &TransactionsHandler{
		store:      s,
		uploader:   uploader,
		assigner:   assigner,
		publisher:  publisher,
		batchLimit: batchLimit,
		maxUpload:  maxUpload,
		log:        log,
	}
}

// ListTransactions handles GET /api/finance/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.store.All()
	if txs == nil {
		txs = []domain.Transaction{}
	}
	if loaded := h.store.LoadedAt(); !loaded.IsZero() {
		w.Header().Set("X-Batch-Loaded-At", loaded.UTC().Format(time.RFC3339))
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// Upload handles POST /api/finance/transactions/upload (multipart field "file").
func (h *TransactionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		// Leave room for the multipart envelope; the pipeline enforces the file limit.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.log.Warn().Err(err).Msg("No file uploaded")
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("reading upload: %v", err))
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	txs, err := h.uploader.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

type assignCategoryRequest struct {
	TransactionDate      string `json:"transactionDate"`
	OperationDescription string `json:"operationDescription"`
	UserInput            string `json:"userInput"`
}

type assignmentResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	Category    string             `json:"category"`
	Rationale   string             `json:"rationale,omitempty"`
}

// AssignCategory handles POST /api/finance/transactions/assign-category.
// The user's guidance is sent in place of the description; without guidance
// the description itself is used.
func (h *TransactionsHandler) AssignCategory(w http.ResponseWriter, r *http.Request) {
	var req assignCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, ok := h.store.Find(req.TransactionDate, req.OperationDescription); !ok {
		h.log.Warn().
			Str("date", req.TransactionDate).
			Str("description", req.OperationDescription).
			Msg("Transaction not found")
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	input := req.UserInput
	if input == "" {
		input = req.OperationDescription
	}

	assignment, err := h.assigner.Assign(r.Context(), input)
	if err != nil {
		h.log.Error().Err(err).Str("description", req.OperationDescription).Msg("Error assigning category")
		writeDomainError(w, err)
		return
	}

	tx, err := h.store.Assign(req.TransactionDate, req.OperationDescription, assignment.Category.String())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.log.Info().Str("category", assignment.Category.String()).Msg("Category assigned")
	middleware.WriteJSON(w, http.StatusOK, assignmentResponse{
		Transaction: tx,
		Category:    assignment.Category.String(),
		Rationale:   assignment.Rationale,
	})
}

// AssignAll handles POST /api/finance/transactions/assign. It runs one batch
// and returns the whole list; with ?async=true it enqueues a job instead and
// returns 202 with the job. ?limit=N overrides the configured batch size.
// While another batch (sync or job) is running it answers 409.
func (h *TransactionsHandler) AssignAll(w http.ResponseWriter, r *http.Request) {
	limit := h.batchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if h.publisher == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Background jobs are disabled")
			return
		}
		job := &jobs.AssignBatchJob{Limit: limit, Trigger: jobs.TriggerAPI}
		if err := h.publisher.PublishAssignBatch(r.Context(), job); err != nil {
			h.log.Error().Err(err).Msg("Failed to enqueue assign batch job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, job)
		return
	}

	result, err := h.assigner.AssignAll(r.Context(), h.store, limit)
	if errors.Is(err, categorize.ErrBatchRunning) {
		middleware.WriteError(w, http.StatusConflict, "A batch assignment is already running")
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Int("assigned", result.Assigned).Msg("Batch assignment interrupted")
	}

	w.Header().Set("X-Assigned-Count", strconv.Itoa(result.Assigned))
	w.Header().Set("X-Failed-Count", strconv.Itoa(len(result.Failed)))
	h.ListTransactions(w, r)
}

type splitRequest struct {
	TransactionDate      string                     `json:"transactionDate"`
	OperationDescription string                     `json:"operationDescription"`
	Allocations          map[string]decimal.Decimal `json:"allocations"`
}

// Split handles PUT /api/finance/transactions/split. The allocations must add
// up to the transaction amount; the stored category is the formatted split.
func (h *TransactionsHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Allocations) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one category is required")
		return
	}

	tx, ok := h.store.Find(req.TransactionDate, req.OperationDescription)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	total, err := tx.AmountValue()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	allocations, err := split.FromAmounts(req.Allocations)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := split.Validate(allocations, total); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			h.log.Info().Str("sum", ve.Sum.StringFixed(2)).Str("total", ve.Total.StringFixed(2)).Msg("Split rejected")
		}
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	category := split.Format(allocations)
	updated, err := h.store.Assign(req.TransactionDate, req.OperationDescription, category)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, assignmentResponse{Transaction: updated, Category: category})
}

// Export handles GET /api/finance/transactions/export.xlsx
func (h *TransactionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := report.Build(h.store.All())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.xlsx"`)
	if _, err := f.WriteTo(w); err != nil {
		h.log.Error().Err(err).Msg("Failed to write report")
	}
}
