// Package router builds the gin engine for the api binary.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/tradeops/arbiter/internal/handler"
)

type Config struct {
	TradeHandler *handler.TradeHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()
	registerTradeRoutes(router, cfg.TradeHandler)
	return router
}
