package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	// Unset environment yields the documented defaults
	cfg := Load()
	if cfg.Model != defaultModel {
		t.Errorf("expected default model %q, got %q", defaultModel, cfg.Model)
	}
	if cfg.SectionsPrefetch != defaultSectionsPrefetch {
		t.Errorf("expected prefetch %d, got %d", defaultSectionsPrefetch, cfg.SectionsPrefetch)
	}
	if cfg.CacheTTL != defaultCacheTTL {
		t.Errorf("expected ttl %v, got %v", defaultCacheTTL, cfg.CacheTTL)
	}
	if !cfg.RulesEnabled {
		t.Error("expected rules enabled by default")
	}
}

func TestLoad_ClampsPrefetchHigh(t *testing.T) {
	// Prefetch values above 12 are clamped to 12
	t.Setenv("VOICENOTE_SECTIONS_PREFETCH", "50")
	if got := Load().SectionsPrefetch; got != MaxSectionsPrefetch {
		t.Errorf("expected %d, got %d", MaxSectionsPrefetch, got)
	}
}

func TestLoad_ClampsPrefetchLow(t *testing.T) {
	// Prefetch values below 1 are clamped to 1
	t.Setenv("VOICENOTE_SECTIONS_PREFETCH", "0")
	if got := Load().SectionsPrefetch; got != MinSectionsPrefetch {
		t.Errorf("expected %d, got %d", MinSectionsPrefetch, got)
	}
}

func TestLoad_UnparsablePrefetchUsesDefault(t *testing.T) {
	// Garbage prefetch values fall back to the default
	t.Setenv("VOICENOTE_SECTIONS_PREFETCH", "many")
	if got := Load().SectionsPrefetch; got != defaultSectionsPrefetch {
		t.Errorf("expected %d, got %d", defaultSectionsPrefetch, got)
	}
}

func TestLoad_CacheTTLParsesDuration(t *testing.T) {
	// CacheTTL accepts Go duration syntax
	t.Setenv("VOICENOTE_CACHE_TTL", "90m")
	if got := Load().CacheTTL; got != 90*time.Minute {
		t.Errorf("expected 90m, got %v", got)
	}
}

func TestLoad_NegativeTTLUsesDefault(t *testing.T) {
	// Non-positive TTLs fall back to the default
	t.Setenv("VOICENOTE_CACHE_TTL", "-1h")
	if got := Load().CacheTTL; got != defaultCacheTTL {
		t.Errorf("expected %v, got %v", defaultCacheTTL, got)
	}
}

func TestLoad_ModelFallsBackToOpenAIVar(t *testing.T) {
	// VOICENOTE_MODEL unset falls back to OPENAI_MODEL
	t.Setenv("OPENAI_MODEL", "gpt-test")
	if got := Load().Model; got != "gpt-test" {
		t.Errorf("expected gpt-test, got %q", got)
	}
}

func TestLoad_RulesDisabled(t *testing.T) {
	// "false" disables the rules feature
	t.Setenv("VOICENOTE_RULES_ENABLED", "false")
	if Load().RulesEnabled {
		t.Error("expected rules disabled")
	}
}

func TestConfig_PathsUnderDataDir(t *testing.T) {
	// Derived paths live under DataDir
	t.Setenv("VOICENOTE_DATA_DIR", "/tmp/vn")
	cfg := Load()
	if cfg.CacheFile() != "/tmp/vn/taxonomy.json" {
		t.Errorf("unexpected cache file %q", cfg.CacheFile())
	}
	if cfg.RulesFile() != "/tmp/vn/rules.json" {
		t.Errorf("unexpected rules file %q", cfg.RulesFile())
	}
}
