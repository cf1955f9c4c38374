package router

import (
	"github.com/gin-gonic/gin"

	"github.com/tradeops/arbiter/internal/handler"
)

func registerTradeRoutes(router *gin.Engine, tradeHandler *handler.TradeHandler) {
	router.GET("/health", tradeHandler.Health)

	router.POST("/agent/trade", tradeHandler.SubmitAgentTrade)

	requests := router.Group("/trade-requests")
	{
		requests.POST("", tradeHandler.CreateTradeRequest)
		requests.POST("/:id/approve", tradeHandler.ApproveTradeRequest)
		requests.GET("/:id", tradeHandler.GetWorkflow)
	}

	router.GET("/audit", tradeHandler.ListAudit)
	router.GET("/audit/stream", tradeHandler.StreamAudit)
}
