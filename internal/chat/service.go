// Package chat runs one assistant turn: load the datasets, assemble and
// render the briefing, and call the assistant under a request deadline.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scrypster/energy-services/internal/briefing"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/llm"
	"github.com/scrypster/energy-services/internal/metrics"
)

// KindDataUnavailable marks replies that failed because a mandatory dataset
// could not be loaded.
const KindDataUnavailable = "data_unavailable"

// KindInvalidRequest marks replies to an empty question.
const KindInvalidRequest = "invalid_request"

const (
	dataUnavailableMessage = "The energy data is unavailable right now. Please try again later."
	emptyQuestionMessage   = "Please enter a question."
)

// Reply is the outcome of one turn. Failures are replies too: Error is set
// and Content holds a plain-language message.
type Reply struct {
	RequestID string         `json:"requestId"`
	Content   string         `json:"content"`
	Role      string         `json:"role"`
	Model     string         `json:"modelUsed,omitempty"`
	Usage     *llm.Usage     `json:"tokensUsed,omitempty"`
	Phase     briefing.Phase `json:"phase,omitempty"`
	Error     bool           `json:"error,omitempty"`
	Kind      string         `json:"kind,omitempty"`
}

// Service answers chat turns.
type Service struct {
	provider  datasets.Provider
	completer llm.ChatCompleter
	catalog   config.Catalog
	cfg       config.AssistantConfig
	metrics   *metrics.Metrics
}

// NewService creates a chat service. m may be nil.
func NewService(provider datasets.Provider, completer llm.ChatCompleter, catalog config.Catalog, cfg config.AssistantConfig, m *metrics.Metrics) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Service{
		provider:  provider,
		completer: completer,
		catalog:   catalog,
		cfg:       cfg,
		metrics:   m,
	}
}

// Send answers content given the prior conversation. The datasets are
// loaded fresh (or from the cache) for every turn.
func (s *Service) Send(ctx context.Context, history []llm.Message, content string) Reply {
	id := uuid.New().String()

	content = strings.TrimSpace(content)
	if content == "" {
		return failure(id, KindInvalidRequest, emptyQuestionMessage)
	}

	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		log.Printf("ERROR: chat %s: failed to load datasets: %v", id, err)
		return failure(id, KindDataUnavailable, dataUnavailableMessage)
	}
	b, err := briefing.Assemble(bundle, s.catalog)
	if err != nil {
		log.Printf("ERROR: chat %s: failed to assemble briefing: %v", id, err)
		return failure(id, KindDataUnavailable, dataUnavailableMessage)
	}

	messages := append(s.trimHistory(history), llm.Message{Role: llm.RoleUser, Content: content})

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.completer.Chat(callCtx, llm.ChatRequest{
		Messages:     messages,
		SystemPrompt: briefing.Render(b),
		Model:        s.cfg.Model,
		MaxTokens:    s.cfg.MaxTokens,
	})
	if err != nil {
		kind := llm.KindOf(err)
		s.metrics.AssistantCall(string(kind), time.Since(start))
		log.Printf("ERROR: chat %s: assistant call failed: %v", id, err)

		var ae *llm.AssistantError
		if errors.As(err, &ae) {
			return failure(id, string(ae.Kind), ae.UserMessage())
		}
		return failure(id, string(kind), llm.UserMessage(kind))
	}
	s.metrics.AssistantCall("ok", time.Since(start))
	s.metrics.AssistantTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	usage := resp.Usage
	return Reply{
		RequestID: id,
		Content:   resp.Content,
		Role:      llm.RoleAssistant,
		Model:     resp.Model,
		Usage:     &usage,
		Phase:     b.Phase,
	}
}

// trimHistory keeps the most recent user and assistant messages, up to the
// configured limit.
func (s *Service) trimHistory(history []llm.Message) []llm.Message {
	kept := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		kept = append(kept, m)
	}
	if limit := s.cfg.MaxHistory; limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return kept
}

func failure(id, kind, message string) Reply {
	return Reply{
		RequestID: id,
		Content:   message,
		Role:      llm.RoleAssistant,
		Error:     true,
		Kind:      kind,
	}
}
