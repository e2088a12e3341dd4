package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Storage backends selectable through STORE_BACKEND
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	// Which adapters implement the ledger store and account repository
	StoreBackend string

	// AWS-specific configuration
	AWSRegion         string
	DynamoDBTableName string
	DynamoDBEndpoint  string

	// Environment and region info
	Environment string
	Region      string

	// SQLite database file. On Lambda this lives on the EFS mount.
	SQLitePath string

	// PostgreSQL connection string
	DatabaseURL string

	// Ledger events; publishing is off when no brokers are set
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel slog.Level
	HTTPAddr string

	// Lambda detection flag (cached)
	isLambda bool
}

// LoadFromEnv loads the configuration from environment variables.
// defaultBackend applies when STORE_BACKEND is unset.
func LoadFromEnv(defaultBackend string) (*Config, error) {
	cfg := &Config{}

	cfg.isLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	cfg.StoreBackend = strings.ToLower(os.Getenv("STORE_BACKEND"))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = defaultBackend
	}
	switch cfg.StoreBackend {
	case BackendDynamoDB, BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	cfg.DynamoDBTableName = os.Getenv("DYNAMODB_TABLE_NAME")
	if cfg.StoreBackend == BackendDynamoDB && cfg.DynamoDBTableName == "" {
		return nil, errors.New("DYNAMODB_TABLE_NAME environment variable is required")
	}
	cfg.DynamoDBEndpoint = os.Getenv("DYNAMODB_ENDPOINT")

	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}

	cfg.Region = os.Getenv("REGION")
	if cfg.Region == "" {
		cfg.Region = "jp"
	}

	cfg.AWSRegion = os.Getenv("AWS_REGION")
	if cfg.AWSRegion == "" {
		// Default AWS regions based on our region code
		switch cfg.Region {
		case "us":
			cfg.AWSRegion = "us-west-2"
		case "eu":
			cfg.AWSRegion = "eu-west-1"
		default:
			cfg.AWSRegion = "ap-northeast-1"
		}
	}

	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	if cfg.SQLitePath == "" {
		if cfg.isLambda {
			cfg.SQLitePath = "/mnt/efs/sqlite/ledger.db"
		} else {
			cfg.SQLitePath = "./data/sqlite/ledger.db"
		}
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	cfg.KafkaTopic = os.Getenv("KAFKA_TOPIC")
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "ledger-entries"
	}

	cfg.LogLevel = slog.LevelInfo
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// IsLambda returns true if the application is running in AWS Lambda
func (c *Config) IsLambda() bool {
	return c.isLambda
}

// EventsEnabled reports whether ledger events should be published
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
