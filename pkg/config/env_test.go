package config

import (
	"testing"
	"time"
)

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("TRAWLER_TEST_STR", "")
	if got := GetEnv("TRAWLER_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv = %q, want fallback", got)
	}

	t.Setenv("TRAWLER_TEST_INT", "not-a-number")
	if got := GetEnvInt("TRAWLER_TEST_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt = %d, want 7", got)
	}

	t.Setenv("TRAWLER_TEST_BOOL", "true")
	if !GetEnvBool("TRAWLER_TEST_BOOL", false) {
		t.Fatalf("GetEnvBool should parse true")
	}
}

func TestLoadBuildsDefaults(t *testing.T) {
	cfg := Load()
	if cfg.AutomationFrequency != 36 {
		t.Fatalf("default automation frequency = %d, want 36", cfg.AutomationFrequency)
	}
	if cfg.FirstRunLookbackHrs != 120 {
		t.Fatalf("default first-run lookback = %d, want 120", cfg.FirstRunLookbackHrs)
	}
	if cfg.TriggerBudget != 5*time.Minute {
		t.Fatalf("default trigger budget = %s, want 5m", cfg.TriggerBudget)
	}
	if cfg.MaxPostsPerRun != 30 {
		t.Fatalf("default max posts per run = %d, want 30", cfg.MaxPostsPerRun)
	}
}

func TestSplitList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
}
