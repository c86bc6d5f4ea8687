package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"openchat/server/internal/domain/memory"
	"openchat/server/internal/interfaces/httpserver/dto"
	"openchat/server/internal/utils/platformerrors"
)

// MemoryHandler serves the working memory endpoints.
type MemoryHandler struct {
	memories      *memory.Service
	resourceOwner string
	log           zerolog.Logger
}

// NewMemoryHandler builds the memory handler.
func NewMemoryHandler(memories *memory.Service, resourceOwner string, log zerolog.Logger) *MemoryHandler {
	return &MemoryHandler{
		memories:      memories,
		resourceOwner: resourceOwner,
		log:           log.With().Str("component", "memory-handler").Logger(),
	}
}

// Get handles GET /v1/memory.
func (h *MemoryHandler) Get(c *gin.Context) {
	m, err := h.memories.Get(c.Request.Context(), h.resourceOwner)
	if err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.FromDomainMemory(m))
}

// Update handles PUT /v1/memory.
func (h *MemoryHandler) Update(c *gin.Context) {
	var req dto.UpdateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := memory.WorkingMemory{
		Name:         req.Name,
		Traits:       req.Traits,
		AnythingElse: req.AnythingElse,
	}
	if err := h.memories.Update(c.Request.Context(), h.resourceOwner, m); err != nil {
		c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.FromDomainMemory(m))
}

// Schema handles GET /v1/memory/schema.
func (h *MemoryHandler) Schema(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", memory.Schema())
}
