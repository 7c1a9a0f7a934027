package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/chat"
	"github.com/dvloznov/finance-assistant/internal/llm"
)

// ChatHandler handles the conversational endpoints.
type ChatHandler struct {
	chat *chat.Service
	log  zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *chat.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chat: svc, log: log}
}

type chatRequest struct {
	Messages            []llm.Message `json:"messages"`
	IncludeTransactions *bool         `json:"includeTransactions"`
}

// Chat handles POST /api/finance/chat. Transactions are included unless
// includeTransactions is false.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		h.log.Warn().Msg("Invalid chat request format")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request format. Please provide messages array.")
		return
	}

	include := req.IncludeTransactions == nil || *req.IncludeTransactions

	content, err := h.chat.Chat(r.Context(), req.Messages, include)
	if err != nil {
		if errors.Is(err, chat.ErrNoMessages) {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request format. Please provide messages array.")
			return
		}
		h.log.Error().Err(err).Msg("Error processing chat request")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"content": content})
}

// CategoryChat handles POST /api/finance/transactions/category-chat
func (h *ChatHandler) CategoryChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, err := h.chat.CategoryChat(r.Context(), req.Message)
	if err != nil {
		h.log.Error().Err(err).Msg("Error processing category chat")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"response": response})
}
