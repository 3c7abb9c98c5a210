package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/scrypster/energy-services/internal/briefing"
	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/llm"
)

// maxChatBodyBytes bounds chat request bodies, history included.
const maxChatBodyBytes = 256 << 10

// Chatter answers one chat turn. *chat.Service implements it.
type Chatter interface {
	Send(ctx context.Context, history []llm.Message, content string) chat.Reply
}

var _ Chatter = (*chat.Service)(nil)

// ChatHandlers contains HTTP handlers for the assistant.
type ChatHandlers struct {
	chatter  Chatter
	provider datasets.Provider
	catalog  config.Catalog
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chatter Chatter, provider datasets.Provider, catalog config.Catalog) *ChatHandlers {
	return &ChatHandlers{
		chatter:  chatter,
		provider: provider,
		catalog:  catalog,
	}
}

// Send handles POST /api/chat.
// Assistant failures are replies, not HTTP errors: the body carries error
// and kind, and the status stays 200 unless the request itself is malformed
// or the data is unavailable.
func (h *ChatHandlers) Send(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reply := h.chatter.Send(r.Context(), req.History, req.Message)
	respondJSON(w, replyStatus(reply), reply)
}

// Suggestions handles GET /api/chat/suggestions.
func (h *ChatHandlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.provider.Bundle(r.Context())
	if err != nil {
		respondDataUnavailable(w, err)
		return
	}
	b, err := briefing.Assemble(bundle, h.catalog)
	if err != nil {
		respondDataUnavailable(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SuggestionsResponse{Questions: briefing.SuggestedQuestions(b)})
}

func replyStatus(reply chat.Reply) int {
	switch reply.Kind {
	case chat.KindInvalidRequest:
		return http.StatusBadRequest
	case chat.KindDataUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
