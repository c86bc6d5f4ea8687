package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/llm"
	"openchat/server/internal/domain/thread"
	"openchat/server/internal/infrastructure/metrics"
	"openchat/server/internal/interfaces/httpserver/dto"
	"openchat/server/internal/utils/platformerrors"
)

// ChatHandler serves the streaming chat endpoint and the model catalog.
type ChatHandler struct {
	orchestrator  *chat.Orchestrator
	catalog       *llm.Catalog
	resourceOwner string
	log           zerolog.Logger
}

// NewChatHandler builds the chat handler.
func NewChatHandler(orchestrator *chat.Orchestrator, catalog *llm.Catalog, resourceOwner string, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator:  orchestrator,
		catalog:       catalog,
		resourceOwner: resourceOwner,
		log:           log.With().Str("component", "chat-handler").Logger(),
	}
}

// Submit handles POST /v1/chat. Validation and thread resolution run before
// the stream is committed, so their failures produce a plain JSON error with
// a non-2xx status. Once streaming starts, failures become error events.
func (h *ChatHandler) Submit(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messages := make([]thread.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, m.ToDomain())
	}

	turnReq := chat.TurnRequest{
		ThreadID:            req.ThreadID,
		ResourceOwner:       h.resourceOwner,
		Messages:            messages,
		Trigger:             chat.Trigger(req.Trigger),
		RegenerateMessageID: req.MessageID,
		ModelID:             req.ModelID,
		WebSearchEnabled:    req.WebSearchEnabled,
	}

	ctx := c.Request.Context()
	turn, err := h.orchestrator.PrepareTurn(ctx, turnReq)
	if err != nil {
		if perr := platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to prepare turn"); perr != nil {
			platformerrors.LogError(h.log, perr)
		}
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	sink := newSSESink(c.Writer, flusher, h.log)

	start := time.Now()
	if err := h.orchestrator.StreamTurn(ctx, turn, sink); err != nil {
		metrics.RecordTurn("error", time.Since(start).Seconds())
		return
	}
	metrics.RecordTurn("completed", time.Since(start).Seconds())
}

// Models handles GET /v1/models.
func (h *ChatHandler) Models(c *gin.Context) {
	defaultID := h.catalog.DefaultID()
	models := h.catalog.Models()
	payload := make([]dto.ModelPayload, 0, len(models))
	for _, m := range models {
		payload = append(payload, dto.FromDomainModel(m, defaultID))
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

// sseSink writes stream events as SSE records. A mutex serializes writes;
// the multiplexer is the only producer but error paths may also write.
type sseSink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	log     zerolog.Logger
	mu      sync.Mutex
}

func newSSESink(w http.ResponseWriter, flusher http.Flusher, log zerolog.Logger) *sseSink {
	return &sseSink{
		writer:  w,
		flusher: flusher,
		log:     log,
	}
}

var _ chat.Sink = (*sseSink)(nil)

// Send frames one event as `event: <type>` + `data: <json>`.
func (s *sseSink) Send(ev chat.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal SSE payload")
		return err
	}

	if _, err := fmt.Fprintf(s.writer, "event: %s\n", ev.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()

	metrics.RecordStreamEvent(string(ev.Type))
	return nil
}
