package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tradeops/arbiter/configs"
	"github.com/tradeops/arbiter/internal/agent"
	"github.com/tradeops/arbiter/internal/audit"
	"github.com/tradeops/arbiter/internal/bus"
	"github.com/tradeops/arbiter/internal/handler"
	"github.com/tradeops/arbiter/internal/logging"
	"github.com/tradeops/arbiter/internal/rag"
	"github.com/tradeops/arbiter/internal/router"
	"github.com/tradeops/arbiter/internal/service"
	"github.com/tradeops/arbiter/internal/tools"
	"github.com/tradeops/arbiter/internal/workflow"
)

// runMigrations applies the goose migrations. An empty DSN is an error:
// running -migrate against the in-memory stores would silently do nothing.
func runMigrations(dsn string) error {
	if dsn == "" {
		return errors.New("no database configured, migrations require POSTGRES_HOST")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.Up(sqlDB, "migrations")
}

func main() {
	cfg := configs.AppLoad()
	logger := logging.New()

	migrateFlag := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	if *migrateFlag {
		if err := runMigrations(cfg.DBDSN); err != nil {
			logger.Fatalf("Migration failed: %v", err)
		}
		logger.Info("Migrations applied")
		return
	}

	hub := audit.NewBroadcaster(logger)

	var store workflow.Store
	var recorder audit.Recorder
	var auditLog audit.Lister

	if cfg.DBDSN != "" {
		db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}

		store = workflow.NewGormStore(db)
		ledger := audit.NewLedger(db, hub)
		recorder = ledger
		auditLog = ledger
	} else {
		logger.Info("No database configured, using in-memory stores")
		store = workflow.NewMemStore()
		ledger := audit.NewMemLedger(hub)
		recorder = ledger
		auditLog = ledger
	}

	var publisher bus.Publisher
	if kp, err := bus.NewKafkaPublisher(cfg.Kafka.Broker, logger); err != nil {
		logger.Warnf("Kafka unavailable, events will be dropped: %v", err)
		publisher = bus.NewNopPublisher(logger)
	} else {
		defer kp.Close()
		publisher = kp
	}

	recorder = audit.NewPublishingRecorder(recorder, publisher, logger)

	retriever := rag.NewClient(cfg.RAGAPIURL, cfg.ClientTimeout)
	caller := tools.NewClient(cfg.MCPServerURL, cfg.ClientTimeout)
	runner := agent.NewRunner(retriever, caller, store, recorder, publisher, cfg.Scoring, logger)

	tradeService := service.NewTradeService(store, publisher, runner, auditLog, logger)
	tradeHandler := handler.NewTradeHandler(tradeService, hub, logger)

	engine := router.NewRouter(&router.Config{TradeHandler: tradeHandler})
	if err := engine.Run(fmt.Sprintf(":%s", cfg.ServerPort)); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
