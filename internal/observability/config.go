package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/shopdesk/internal/config"
)

// Config is the resolved observability setup. OTEL_* variables take precedence
// over the application settings so collectors can be retargeted per deployment.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel      string
	LogFormat     string
	SQLLogLevel   string
	SlowQueryMS   int64
	MetricsPrefix string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "shopdesk"
	}

	protocol := firstNonEmpty(
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"),
		os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		cfg.OTLPProtocol,
		"grpc",
	)

	return Config{
		ServiceName:          serviceName,
		Environment:          firstNonEmpty(os.Getenv("DEPLOYMENT_ENV"), cfg.Environment),
		Version:              firstNonEmpty(os.Getenv("SERVICE_VERSION"), cfg.AppVersion),
		LogLevel:             strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		LogFormat:            strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")),
		SQLLogLevel:          strings.ToLower(firstNonEmpty(os.Getenv("SQL_LOG_LEVEL"), "warn")),
		SlowQueryMS:          getenvInt64("SQL_SLOW_QUERY_MS", 200),
		MetricsPrefix:        strings.ReplaceAll(serviceName, "-", "_"),
		OtelEnabled:          getenvBool("OTEL_ENABLED", cfg.OTelEnabled),
		OtelExporterEndpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(protocol),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func getenvBool(key string, def bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return value
}

func getenvInt64(key string, def int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return def
	}
	return value
}

func getenvFloat(key string, def float64) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return value
}
