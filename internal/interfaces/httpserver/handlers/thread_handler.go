package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"openchat/server/internal/domain/thread"
	"openchat/server/internal/interfaces/httpserver/dto"
	"openchat/server/internal/utils/platformerrors"
)

// ThreadHandler serves thread listing, recall, deletion and cloning.
type ThreadHandler struct {
	threads       *thread.Service
	resourceOwner string
	log           zerolog.Logger
}

// NewThreadHandler builds the thread handler.
func NewThreadHandler(threads *thread.Service, resourceOwner string, log zerolog.Logger) *ThreadHandler {
	return &ThreadHandler{
		threads:       threads,
		resourceOwner: resourceOwner,
		log:           log.With().Str("component", "thread-handler").Logger(),
	}
}

// List handles GET /v1/threads.
func (h *ThreadHandler) List(c *gin.Context) {
	threads, err := h.threads.List(c.Request.Context(), h.resourceOwner)
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	payload := make([]dto.ThreadPayload, 0, len(threads))
	for _, t := range threads {
		payload = append(payload, dto.FromDomainThread(t))
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

// Get handles GET /v1/threads/:thread_id, returning the thread with its
// message log.
func (h *ThreadHandler) Get(c *gin.Context) {
	id := c.Param("thread_id")
	ctx := c.Request.Context()

	t, err := h.threads.Get(ctx, id)
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	messages, err := h.threads.Recall(ctx, id)
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	payload := dto.ThreadWithMessagesPayload{
		ThreadPayload: dto.FromDomainThread(t),
		Messages:      make([]dto.MessagePayload, 0, len(messages)),
	}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, dto.FromDomainMessage(m))
	}
	c.JSON(http.StatusOK, payload)
}

// Messages handles GET /v1/threads/:thread_id/messages, returning the message
// log without the thread envelope.
func (h *ThreadHandler) Messages(c *gin.Context) {
	id := c.Param("thread_id")
	ctx := c.Request.Context()

	if _, err := h.threads.Get(ctx, id); err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	messages, err := h.threads.Recall(ctx, id)
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	payload := make([]dto.MessagePayload, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, dto.FromDomainMessage(m))
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

// Delete handles DELETE /v1/threads/:thread_id.
func (h *ThreadHandler) Delete(c *gin.Context) {
	id := c.Param("thread_id")
	if err := h.threads.Delete(c.Request.Context(), id); err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Clone handles POST /v1/threads/:thread_id/clone.
func (h *ThreadHandler) Clone(c *gin.Context) {
	id := c.Param("thread_id")

	var req dto.CloneThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clone, err := h.threads.Clone(c.Request.Context(), id, req.UpToMessageID)
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dto.FromDomainThread(clone))
}
