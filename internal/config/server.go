package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Server holds process settings for cmd/server.
type Server struct {
	Port string

	// StoreBackend is one of memory, firestore, sqlite.
	StoreBackend    string
	SQLiteDBPath    string
	GoogleProjectID string

	SkipAuth   bool
	FCMEnabled bool

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// SnapshotSource is one of store, gcs, bigquery.
	SnapshotSource  string
	SnapshotBucket  string
	BigQueryDataset string

	EngineConfigFile string
	LogLevel         string

	// SeedDemo fills the memory store with demo data for the local user.
	SeedDemo bool
}

// LoadServer reads settings from the environment, after loading an optional
// .env file. Values already set in the environment win over the file.
func LoadServer(envFiles ...string) *Server {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// A missing .env is the normal production case.
		_ = godotenv.Load(f)
	}

	backend := getEnv("STORE_BACKEND", "")
	if backend == "" {
		backend = "firestore"
		if os.Getenv("USE_MEMORY_STORE") == "true" || os.Getenv("ENV") == "local" {
			backend = "memory"
		}
	}

	return &Server{
		Port:             getEnv("PORT", "8111"),
		StoreBackend:     backend,
		SQLiteDBPath:     getEnv("SQLITE_DB_PATH", "./data/insights.db"),
		GoogleProjectID:  getEnv("GOOGLE_CLOUD_PROJECT", ""),
		SkipAuth:         getEnvBool("SKIP_AUTH", false),
		FCMEnabled:       getEnvBool("FCM_ENABLED", false),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "pfinance"),
		AMQPQueue:        getEnv("AMQP_QUEUE", "notifications"),
		SnapshotSource:   getEnv("SNAPSHOT_SOURCE", "store"),
		SnapshotBucket:   getEnv("SNAPSHOT_BUCKET", ""),
		BigQueryDataset:  getEnv("BIGQUERY_DATASET", ""),
		EngineConfigFile: getEnv("ENGINE_CONFIG_FILE", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		SeedDemo:         getEnvBool("SEED_DEMO", false),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Server) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StoreBackend {
	case "memory", "sqlite":
	case "firestore":
		if c.GoogleProjectID == "" {
			problems = append(problems, "GOOGLE_CLOUD_PROJECT is required for the firestore backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid store backend '%s': must be one of memory, firestore, sqlite", c.StoreBackend))
	}

	if c.StoreBackend == "sqlite" && c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
	}

	switch c.SnapshotSource {
	case "store":
	case "gcs":
		if c.SnapshotBucket == "" {
			problems = append(problems, "SNAPSHOT_BUCKET is required for the gcs snapshot source")
		}
	case "bigquery":
		if c.BigQueryDataset == "" || c.GoogleProjectID == "" {
			problems = append(problems, "BIGQUERY_DATASET and GOOGLE_CLOUD_PROJECT are required for the bigquery snapshot source")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid snapshot source '%s': must be one of store, gcs, bigquery", c.SnapshotSource))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" || c.AMQPQueue == "" {
			problems = append(problems, "AMQP exchange and queue names cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
