package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tradeops/arbiter/configs"
	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/logging"
	"github.com/tradeops/arbiter/internal/toolsrv"
	"github.com/tradeops/arbiter/internal/workflow"
)

func main() {
	cfg := configs.AppLoad()
	logger := logging.New()

	var orders toolsrv.OrderStore
	var workflows workflow.Store
	var recorder audit.Recorder
	var auditLog audit.Lister

	if cfg.DBDSN != "" {
		db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		orders = toolsrv.NewGormOrderStore(db)
		workflows = workflow.NewGormStore(db)
		ledger := audit.NewLedger(db, nil)
		recorder = ledger
		auditLog = ledger
	} else {
		logger.Info("No database configured, using in-memory stores")
		orders = toolsrv.NewMemOrderStore()
		workflows = workflow.NewMemStore()
		ledger := audit.NewMemLedger(nil)
		recorder = ledger
		auditLog = ledger
	}

	registry := toolsrv.NewRegistry(orders, workflows, auditLog, logger)
	server := toolsrv.NewServer(registry, recorder, toolsrv.NewCallStats(), logger)

	engine := gin.Default()
	server.Routes(engine)

	if err := engine.Run(fmt.Sprintf(":%s", cfg.ToolServerPort)); err != nil {
		logger.Fatalf("Tool server failed: %v", err)
	}
}
