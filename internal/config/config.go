package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	SnowflakeNode int64

	OTLPEndpoint string
	OTLPProtocol string
	OTelEnabled  bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Kafka     KafkaConfig
	Tax       TaxConfig
	RateLimit RateLimitConfig
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers          []string
	TaxSettingsTopic string
	ConsumerGroup    string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// InstanceGroup is the consumer group for one replica. Settings events
// invalidate a per-process cache, so every replica needs its own group to
// receive every message.
func (k KafkaConfig) InstanceGroup(node int64) string {
	group := strings.TrimSpace(k.ConsumerGroup)
	if group == "" {
		group = "shopdesk"
	}
	return fmt.Sprintf("%s-%d", group, node)
}

// RateLimitConfig throttles ad-hoc tax quotes per shop. Requires redis.
type RateLimitConfig struct {
	CalculateRate  float64
	CalculateBurst int
}

// TaxConfig controls process-wide tax behavior. Shop-level rates live in the database.
type TaxConfig struct {
	ExemptionPolicy string
	SettingsTTL     time.Duration
}

const (
	ExemptionPolicyPerAxis  = "per_axis"
	ExemptionPolicyCombined = "combined"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "shopdesk"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:  strings.ToLower(getenv("OTLP_PROTOCOL", "grpc")),
		OTelEnabled:   getenvBool("OTEL_ENABLED", false),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "shopdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Host:     getenv("REDIS_HOST", "localhost"),
			Port:     int(getenvInt64("REDIS_PORT", 6379)),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Kafka: KafkaConfig{
			Brokers:          parseList(getenv("KAFKA_BROKERS", "")),
			TaxSettingsTopic: getenv("KAFKA_TAX_SETTINGS_TOPIC", "shopdesk.tax_settings"),
			ConsumerGroup:    getenv("KAFKA_CONSUMER_GROUP", "shopdesk"),
		},
		Tax: TaxConfig{
			ExemptionPolicy: normalizeExemptionPolicy(getenv("TAX_EXEMPTION_POLICY", ExemptionPolicyPerAxis)),
			SettingsTTL:     time.Duration(getenvInt64("TAX_SETTINGS_CACHE_TTL", 300)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			CalculateRate:  getenvFloat("TAX_CALCULATE_RATE", 20),
			CalculateBurst: int(getenvInt64("TAX_CALCULATE_BURST", 40)),
		},
	}

	return cfg
}

func normalizeExemptionPolicy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ExemptionPolicyCombined:
		return ExemptionPolicyCombined
	default:
		return ExemptionPolicyPerAxis
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
