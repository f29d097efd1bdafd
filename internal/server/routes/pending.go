package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/web3nomad/Rabby/internal/handler"
)

// RegisterPendingRoutes 注册本地 pending 队列路由
func RegisterPendingRoutes(rg *gin.RouterGroup, h *handler.PendingHandler) {
	pending := rg.Group("/pending")
	{
		pending.POST("", h.Add)
		pending.GET("", h.List)
	}
}
