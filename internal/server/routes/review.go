package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/web3nomad/Rabby/internal/handler"
)

// RegisterReviewRoutes 注册交易评审路由
func RegisterReviewRoutes(rg *gin.RouterGroup, h *handler.ReviewHandler) {
	reviews := rg.Group("/reviews")
	{
		reviews.POST("", h.Open)
		reviews.GET("/:id", h.Get)
		reviews.DELETE("/:id", h.Close)
		reviews.POST("/:id/refresh", h.Refresh)
		reviews.POST("/:id/gas", h.ChangeGas)
		reviews.POST("/:id/custom-gas", h.SetCustomGas)
		reviews.POST("/:id/ack", h.Acknowledge)
		reviews.POST("/:id/force", h.Force)
		reviews.POST("/:id/allow", h.Allow)
	}
}

// RegisterSignRoutes 注册 typed data 签名评审路由
func RegisterSignRoutes(rg *gin.RouterGroup, h *handler.ReviewHandler) {
	signs := rg.Group("/signs")
	{
		signs.POST("", h.OpenSign)
		signs.GET("/:id", h.GetSign)
		signs.POST("/:id/check", h.CheckSign)
		signs.POST("/:id/force", h.ForceSign)
		signs.POST("/:id/allow", h.AllowSign)
	}
}
