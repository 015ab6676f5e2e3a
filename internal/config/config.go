package config

import (
	"fmt"
	"os"
	"time"
)

const (
	ServiceVersion = "0.1.0"
)

const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
)

const (
	TracesPath      = "/v1/traces"
	ExportTimeout   = 30 * time.Second
	MaxQueueSize    = 2048
	ShutdownTimeout = 5 * time.Second
)

type Config struct {
	ServiceName string
	Env         string

	HTTPAddr string
	GRPCAddr string

	StoreDriver string
	MySQLDSN    string
	RedisAddr   string

	KafkaBroker string
	KafkaTopic  string

	OtelEndpoint   string
	OtelAuthHeader string
}

// Load reads the configuration from the environment. Unset values fall back
// to defaults suitable for a local run against the in-memory store.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:    getenvDefault("SERVICE_NAME", "blood-service"),
		Env:            getenvDefault("ENV", "dev"),
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		GRPCAddr:       getenvDefault("GRPC_ADDR", ":50051"),
		StoreDriver:    getenvDefault("STORE_DRIVER", DriverMemory),
		MySQLDSN:       os.Getenv("MYSQL_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		KafkaTopic:     getenvDefault("KAFKA_TOPIC", "blood.demand.created"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":" + getenvDefault("PORT", "5003")
	}
	if os.Getenv("GRPC_DISABLED") == "true" {
		cfg.GRPCAddr = ""
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverMySQL:
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("MYSQL_DSN environment variable is required for store driver %q", cfg.StoreDriver)
		}
	case DriverRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR environment variable is required for store driver %q", cfg.StoreDriver)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
