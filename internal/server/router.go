package server

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/web3nomad/Rabby/docs/swagger"
	"github.com/web3nomad/Rabby/internal/handler"
	"github.com/web3nomad/Rabby/internal/handler/response"
	"github.com/web3nomad/Rabby/internal/server/routes"
	"github.com/web3nomad/Rabby/pkg/logger"
	"github.com/web3nomad/Rabby/pkg/monitor"
	"github.com/web3nomad/Rabby/pkg/validator"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(review *handler.ReviewHandler, pending *handler.PendingHandler) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 交易里的 wei 数值超出 float64 精度, 按 json.Number 解码
	binding.EnableDecoderUseNumber = true
	if err := validator.Init(); err != nil {
		logger.Fatal("register validators failed")
	}

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})
		routes.RegisterReviewRoutes(api, review)
		routes.RegisterSignRoutes(api, review)
		routes.RegisterPendingRoutes(api, pending)
	}

	return r
}
