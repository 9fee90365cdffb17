package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("APP_URL", "https://example.test/")
	t.Setenv("DUITKU_EXPIRY_MINUTES", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q; want 8080", cfg.Port)
	}
	if cfg.AppURL != "https://example.test" {
		t.Errorf("AppURL = %q; want trailing slash trimmed", cfg.AppURL)
	}
	if cfg.DuitkuExpiryMinutes != 60 {
		t.Errorf("DuitkuExpiryMinutes = %d; want fallback 60", cfg.DuitkuExpiryMinutes)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Errorf("KafkaBrokers = %v; want [a:9092 b:9092]", cfg.KafkaBrokers)
	}
}
