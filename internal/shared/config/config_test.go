package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENV", "REDIS_ADDR", "OPENAI_API_KEY",
		"QUEUE_MAX_ATTEMPTS", "QUEUE_BACKOFF_BASE_MS", "QUEUE_CONCURRENCY",
		"LLM_RETRY_ATTEMPTS", "LLM_RETRY_BASE_MS", "RENDER_POOL_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" || cfg.Env != "dev" {
		t.Fatalf("unexpected defaults: port=%q env=%q", cfg.Port, cfg.Env)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("empty REDIS_ADDR should stay empty, got %q", cfg.RedisAddr)
	}
	if cfg.QueueMaxAttempts != 3 || cfg.QueueBackoffBase != 1500*time.Millisecond || cfg.QueueConcurrency != 4 {
		t.Fatalf("unexpected queue defaults: %d/%v/%d",
			cfg.QueueMaxAttempts, cfg.QueueBackoffBase, cfg.QueueConcurrency)
	}
	if cfg.LLMRetryAttempts != 2 || cfg.LLMRetryBaseDelay != 300*time.Millisecond {
		t.Fatalf("unexpected llm retry defaults: %d/%v", cfg.LLMRetryAttempts, cfg.LLMRetryBaseDelay)
	}
	if cfg.RenderPoolSize != 2 {
		t.Fatalf("unexpected render pool default: %d", cfg.RenderPoolSize)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "gpt-test")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("QUEUE_BACKOFF_BASE_MS", "250")
	t.Setenv("ENV", "PRODUCTION")
	t.Setenv("OBJECT_STORE", "S3")

	cfg := Load()
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("OPENAI_API_KEY not carried into config: %q", cfg.OpenAIAPIKey)
	}
	if cfg.LLMModel != "gpt-test" {
		t.Fatalf("LLM_MODEL not carried into config: %q", cfg.LLMModel)
	}
	if cfg.QueueMaxAttempts != 5 || cfg.QueueBackoffBase != 250*time.Millisecond {
		t.Fatalf("queue overrides lost: %d/%v", cfg.QueueMaxAttempts, cfg.QueueBackoffBase)
	}
	if cfg.Env != "production" {
		t.Fatalf("env not normalized: %q", cfg.Env)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("store type not normalized: %q", cfg.ObjectStoreType)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("QUEUE_MAX_ATTEMPTS", "lots")
	t.Setenv("QUEUE_BACKOFF_BASE_MS", "-10")

	cfg := Load()
	if cfg.QueueMaxAttempts != 3 {
		t.Fatalf("malformed int should fall back to default, got %d", cfg.QueueMaxAttempts)
	}
	if cfg.QueueBackoffBase != 1500*time.Millisecond {
		t.Fatalf("negative millis should fall back to default, got %v", cfg.QueueBackoffBase)
	}
}
