package config

import (
	"strings"
	"time"
)

// Config is the full service configuration, built once at startup and passed
// explicitly to each component. Components never read the environment
// themselves.
type Config struct {
	DatabaseURL string
	RedisURL    string

	// Scraping provider
	ScraperBaseURL       string
	ScraperToken         string
	ScraperPrimaryActor  string
	ScraperFallbackActor string

	// Publishing platform
	PublisherBaseURL string
	PublisherToken   string
	PublisherProfile string

	// Media storage
	StorageBucket    string
	StorageRegion    string
	StorageEndpoint  string
	StoragePublicURL string

	// Kafka lifecycle events
	KafkaBrokers []string
	KafkaTopic   string

	// Trigger auth + cadence
	TriggerSecret        string
	AutomationFrequency  int           // hours between automation runs
	TriggerBudget        time.Duration // wall-clock ceiling for one trigger invocation
	MaxPostsPerRun       int
	MaxMediaPerPost      int
	FirstRunLookbackHrs  int
	ReconcileGraceShort  time.Duration // caption matching kicks in after this
	ReconcileGraceLong   time.Duration // stale fallback kicks in after this
	PublisherCacheExpiry time.Duration
}

// Load builds the service configuration from the environment.
func Load() Config {
	return Config{
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		RedisURL:    GetEnv("REDIS_URL", ""),

		ScraperBaseURL:       GetEnv("SCRAPER_BASE_URL", "https://api.apify.com"),
		ScraperToken:         GetEnv("SCRAPER_TOKEN", ""),
		ScraperPrimaryActor:  GetEnv("SCRAPER_PRIMARY_ACTOR", "apify~instagram-scraper"),
		ScraperFallbackActor: GetEnv("SCRAPER_FALLBACK_ACTOR", "apify~instagram-post-scraper"),

		PublisherBaseURL: GetEnv("PUBLISHER_BASE_URL", ""),
		PublisherToken:   GetEnv("PUBLISHER_TOKEN", ""),
		PublisherProfile: GetEnv("PUBLISHER_PROFILE_ID", ""),

		StorageBucket:    GetEnv("MEDIA_BUCKET", "trawler-media"),
		StorageRegion:    GetEnv("MEDIA_REGION", "us-east-1"),
		StorageEndpoint:  GetEnv("MEDIA_ENDPOINT", ""),
		StoragePublicURL: GetEnv("MEDIA_PUBLIC_URL", ""),

		KafkaBrokers: splitList(GetEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   GetEnv("LIFECYCLE_KAFKA_TOPIC", "content.lifecycle"),

		TriggerSecret:        GetEnv("TRIGGER_SECRET", ""),
		AutomationFrequency:  GetEnvInt("AUTOMATION_FREQUENCY_HOURS", 36),
		TriggerBudget:        time.Duration(GetEnvInt("TRIGGER_BUDGET_SECONDS", 300)) * time.Second,
		MaxPostsPerRun:       GetEnvInt("MAX_POSTS_PER_RUN", 30),
		MaxMediaPerPost:      GetEnvInt("MAX_MEDIA_PER_POST", 10),
		FirstRunLookbackHrs:  GetEnvInt("FIRST_RUN_LOOKBACK_HOURS", 120),
		ReconcileGraceShort:  time.Duration(GetEnvInt("RECONCILE_GRACE_SHORT_MIN", 30)) * time.Minute,
		ReconcileGraceLong:   time.Duration(GetEnvInt("RECONCILE_GRACE_LONG_MIN", 60)) * time.Minute,
		PublisherCacheExpiry: time.Duration(GetEnvInt("PUBLISHER_CACHE_SECONDS", 60)) * time.Second,
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
