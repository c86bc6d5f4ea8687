package v1

import (
	"github.com/gin-gonic/gin"

	"openchat/server/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes builds the v1 route registrar.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register attaches all v1 routes under the /v1 prefix.
func (r *Routes) Register(engine *gin.Engine) {
	group := engine.Group("/v1")
	registerChatRoutes(group, r.handlers.Chat)
	registerThreadRoutes(group, r.handlers.Thread)
	registerMemoryRoutes(group, r.handlers.Memory)
}

func registerChatRoutes(group *gin.RouterGroup, h *handlers.ChatHandler) {
	group.POST("/chat", h.Submit)
	group.GET("/models", h.Models)
}

func registerThreadRoutes(group *gin.RouterGroup, h *handlers.ThreadHandler) {
	group.GET("/threads", h.List)
	group.GET("/threads/:thread_id", h.Get)
	group.GET("/threads/:thread_id/messages", h.Messages)
	group.DELETE("/threads/:thread_id", h.Delete)
	group.POST("/threads/:thread_id/clone", h.Clone)
}

func registerMemoryRoutes(group *gin.RouterGroup, h *handlers.MemoryHandler) {
	group.GET("/memory", h.Get)
	group.PUT("/memory", h.Update)
	group.GET("/memory/schema", h.Schema)
}
