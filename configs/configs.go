// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBDSN is the Postgres connection string. Empty means the in-memory
	// stores are used (local development without a database).
	DBDSN string

	// ServerPort is the HTTP listen port for the api binary.
	ServerPort string

	// ToolServerPort is the HTTP listen port for the toolsrv binary.
	ToolServerPort string

	// Kafka contains event bus connection settings.
	Kafka KafkaConfig

	// RAGAPIURL is the base URL of the context retrieval service.
	RAGAPIURL string

	// MCPServerURL is the base URL of the tool invocation service.
	MCPServerURL string

	// ClientTimeout bounds every outbound collaborator call.
	ClientTimeout time.Duration

	// Scoring contains the confidence scorer constants.
	Scoring ScoringConfig
}

// KafkaConfig holds Kafka connection settings for the event bus.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// GroupID is the consumer group ID for the notifier.
	GroupID string
}

// ScoringConfig holds the confidence scorer constants and the decision threshold.
type ScoringConfig struct {
	// Base is the starting score before any evidence is applied.
	Base float64

	// RiskPassBonus is added when the risk check passes.
	RiskPassBonus float64

	// ViolationPenalty is subtracted per risk violation when the check fails.
	ViolationPenalty float64

	// ContextWeight scales the mean relevance of retrieved context hits.
	ContextWeight float64

	// Threshold is the minimum score for an autonomous decision.
	// Anything below is escalated to a human.
	Threshold float64
}

// getDatabaseDSN constructs the Postgres DSN from environment variables.
// Returns empty when no host is configured, which selects the memory stores.
func getDatabaseDSN() string {
	dbHost := getEnv("POSTGRES_HOST", "")
	if dbHost == "" {
		return ""
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost,
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_USER", "tradeops"),
		getEnv("POSTGRES_PASSWORD", "tradeops"),
		getEnv("POSTGRES_DB", "tradeops"),
	)
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		DBDSN:          getDatabaseDSN(),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ToolServerPort: getEnv("TOOL_SERVER_PORT", "8016"),
		Kafka: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			GroupID: getEnv("KAFKA_GROUP_ID", "arbiter-notifier"),
		},
		RAGAPIURL:     getEnv("RAG_API_URL", "http://localhost:8014"),
		MCPServerURL:  getEnv("MCP_SERVER_URL", "http://localhost:8016"),
		ClientTimeout: time.Duration(getEnvInt("CLIENT_TIMEOUT_SECONDS", 10)) * time.Second,
		Scoring: ScoringConfig{
			Base:             getEnvFloat("SCORE_BASE", 0.5),
			RiskPassBonus:    getEnvFloat("SCORE_RISK_PASS_BONUS", 0.3),
			ViolationPenalty: getEnvFloat("SCORE_VIOLATION_PENALTY", 0.1),
			ContextWeight:    getEnvFloat("SCORE_CONTEXT_WEIGHT", 0.1),
			Threshold:        getEnvFloat("CONFIDENCE_THRESHOLD", 0.7),
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
