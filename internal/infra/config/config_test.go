package config

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHAT_BACKEND", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CHAT_RETRY_BACKOFF", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.ChatBackend != BackendMemory {
		t.Fatalf("expected memory backend by default, got %q", cfg.ChatBackend)
	}
	if cfg.ChatRetries != 2 || cfg.ChatPreviewMax != 500 {
		t.Fatalf("unexpected chat defaults: retries=%d previewMax=%d", cfg.ChatRetries, cfg.ChatPreviewMax)
	}
	want := []time.Duration{250 * time.Millisecond, time.Second, 3 * time.Second}
	if len(cfg.ChatBackoff) != len(want) {
		t.Fatalf("unexpected backoff %v", cfg.ChatBackoff)
	}
	for i := range want {
		if cfg.ChatBackoff[i] != want[i] {
			t.Fatalf("unexpected backoff %v", cfg.ChatBackoff)
		}
	}
	if cfg.ScyllaConsistency != gocql.Quorum {
		t.Fatalf("expected quorum consistency, got %v", cfg.ScyllaConsistency)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CHAT_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
}

func TestLoadMongoRequiresURI(t *testing.T) {
	t.Setenv("CHAT_BACKEND", "mongo")
	t.Setenv("MONGO_URI", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing MONGO_URI")
	}

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MongoDB != "technest" {
		t.Fatalf("expected default mongo db, got %q", cfg.MongoDB)
	}
}

func TestLoadScyllaSettings(t *testing.T) {
	t.Setenv("CHAT_BACKEND", "scylla")
	t.Setenv("SCYLLA_HOSTS", "node-a , node-b,,node-c")
	t.Setenv("SCYLLA_CONSISTENCY", "local_quorum")
	t.Setenv("SCYLLA_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ScyllaHosts) != 3 || cfg.ScyllaHosts[0] != "node-a" || cfg.ScyllaHosts[2] != "node-c" {
		t.Fatalf("unexpected hosts %v", cfg.ScyllaHosts)
	}
	if cfg.ScyllaConsistency != gocql.LocalQuorum {
		t.Fatalf("unexpected consistency %v", cfg.ScyllaConsistency)
	}
	if cfg.ScyllaTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected timeout %v", cfg.ScyllaTimeout)
	}
}

func TestLoadInvalidBackoff(t *testing.T) {
	t.Setenv("CHAT_RETRY_BACKOFF", "250ms,soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid backoff component")
	}
}

func TestLoadKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("KAFKA_TOPIC_PREFIX", "prod.")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopicPrefix != "prod." {
		t.Fatalf("unexpected prefix %q", cfg.KafkaTopicPrefix)
	}
}
