package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/internal/inbound"
	"github.com/wolfman30/replyflow/pkg/logging"
)

const maxTranscriptLimit = 200

type transcriptStore interface {
	LookupConversation(ctx context.Context, tenantID int64, address string) (int64, error)
	RecentHistory(ctx context.Context, conversationID int64, limit int) ([]conversation.Turn, error)
}

// AdminTranscriptsHandler exposes conversation transcripts to operators.
type AdminTranscriptsHandler struct {
	store  transcriptStore
	logger *logging.Logger
}

func NewAdminTranscriptsHandler(store transcriptStore, logger *logging.Logger) *AdminTranscriptsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminTranscriptsHandler{store: store, logger: logger}
}

// TranscriptResponse lists turns oldest first.
type TranscriptResponse struct {
	TenantID       int64               `json:"tenant_id"`
	Address        string              `json:"address"`
	ConversationID int64               `json:"conversation_id"`
	Turns          []conversation.Turn `json:"turns"`
}

// GetTranscript returns the latest turns of one conversation.
// GET /admin/tenants/{tenantID}/conversations/{address}/turns?limit=50
func (h *AdminTranscriptsHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(r)
	if !ok {
		jsonError(w, "invalid tenantID", http.StatusBadRequest)
		return
	}
	address := inbound.NormalizeAddress(chi.URLParam(r, "address"))
	if address == "" {
		jsonError(w, "invalid address", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = conversation.DefaultHistoryLimit
	}
	if limit > maxTranscriptLimit {
		limit = maxTranscriptLimit
	}

	conversationID, err := h.store.LookupConversation(r.Context(), tenantID, address)
	if errors.Is(err, conversation.ErrConversationNotFound) {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to look up conversation", "tenant_id", tenantID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	turns, err := h.store.RecentHistory(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("failed to load transcript", "conversation_id", conversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{
		TenantID:       tenantID,
		Address:        address,
		ConversationID: conversationID,
		Turns:          turns,
	})
}
