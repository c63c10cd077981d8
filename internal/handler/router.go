package handler

import (
	"docqa-go/internal/middleware"
	"docqa-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// API token 的权限范围
const (
	ScopeAsk    = "ask"
	ScopeIngest = "ingest"
)

// Handlers 汇总所有路由处理器。
type Handlers struct {
	QA        *QAHandler
	Documents *DocumentHandler
	Health    *HealthHandler
}

// NewRouter 创建路由引擎并注册所有路由。jwtManager 为 nil 时不校验 token。
func NewRouter(jwtManager *token.JWTManager, h Handlers) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", h.Health.Healthz)

	apiV1 := r.Group("/api/v1")
	{
		hackrx := apiV1.Group("/hackrx")
		hackrx.Use(middleware.AuthMiddleware(jwtManager, ScopeAsk))
		{
			hackrx.POST("/run", h.QA.Run)
			hackrx.GET("/stream", h.QA.Stream)
		}

		documents := apiV1.Group("/documents")
		{
			documents.GET("/:hash", middleware.AuthMiddleware(jwtManager, ScopeAsk), h.Documents.Get)
			documents.POST("", middleware.AuthMiddleware(jwtManager, ScopeIngest), h.Documents.Upload)
		}
	}
	return r
}
