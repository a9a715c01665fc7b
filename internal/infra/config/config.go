package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

// Backend selects the chat persistence implementation.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendScylla = "scylla"
)

// Config aggregates application configuration values loaded from environment
// variables.
type Config struct {
	Env      string
	HTTPAddr string

	ChatBackend     string
	ChatRetries     int
	ChatBackoff     []time.Duration
	ChatPreviewMax  int
	ItemFixtures    string
	UserFixtures    string

	MongoURI string
	MongoDB  string

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaUsername    string
	ScyllaPassword    string
	ScyllaConsistency gocql.Consistency
	ScyllaTimeout     time.Duration
	ReplicationFactor int

	KafkaBrokers     []string
	KafkaTopicPrefix string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:            getEnv("APP_ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		ChatBackend:    strings.ToLower(getEnv("CHAT_BACKEND", BackendMemory)),
		ChatPreviewMax: parseIntWithDefault(os.Getenv("CHAT_PREVIEW_MAX"), 500),
		ChatRetries:    parseIntWithDefault(os.Getenv("CHAT_ENSURE_RETRIES"), 2),
		ItemFixtures:   getEnv("ITEM_FIXTURES", ""),
		UserFixtures:   getEnv("USER_FIXTURES", ""),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "technest"),

		ScyllaHosts:    splitAndTrim(getEnv("SCYLLA_HOSTS", "localhost")),
		ScyllaKeyspace: strings.TrimSpace(getEnv("SCYLLA_KEYSPACE", "technest_chat")),
		ScyllaUsername: strings.TrimSpace(os.Getenv("SCYLLA_USERNAME")),
		ScyllaPassword: strings.TrimSpace(os.Getenv("SCYLLA_PASSWORD")),
		ReplicationFactor: parseIntWithDefault(
			strings.TrimSpace(os.Getenv("SCYLLA_REPLICATION_FACTOR")), 1),

		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
	}

	switch cfg.ChatBackend {
	case BackendMemory, BackendMongo, BackendScylla:
	default:
		return Config{}, fmt.Errorf("unsupported CHAT_BACKEND: %s", cfg.ChatBackend)
	}
	if cfg.ChatBackend == BackendMongo && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required for the mongo backend")
	}
	if cfg.ChatBackend == BackendScylla {
		if cfg.ScyllaKeyspace == "" {
			return Config{}, fmt.Errorf("SCYLLA_KEYSPACE is required for the scylla backend")
		}
		if len(cfg.ScyllaHosts) == 0 {
			return Config{}, fmt.Errorf("SCYLLA_HOSTS is required for the scylla backend")
		}
	}

	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}

	retryStr := getEnv("CHAT_RETRY_BACKOFF", "250ms,1s,3s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHAT_RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.ChatBackoff = append(cfg.ChatBackoff, d)
	}

	timeout, err := parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ScyllaTimeout = timeout

	consistency, err := parseConsistency(getEnv("SCYLLA_CONSISTENCY", "quorum"))
	if err != nil {
		return Config{}, err
	}
	cfg.ScyllaConsistency = consistency
	if cfg.ReplicationFactor < 1 {
		cfg.ReplicationFactor = 1
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum", "localquorum":
		return gocql.LocalQuorum, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Quorum, fmt.Errorf("unsupported SCYLLA_CONSISTENCY: %s", raw)
	}
}
