// Package config resolves the runtime configuration from environment
// variables. A .env file is loaded by the command layer before Load runs, so
// every option can live either in the process environment or in .env.
//
// Keys use the VOICENOTE_ prefix; the LLM credentials fall back to the shared
// OPENAI_* variables so one set of credentials can serve multiple tools.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Bounds for the section prefetch count. Prefetching warms the grounding
// context; more than a dozen projects just bloats the prompt.
const (
	MinSectionsPrefetch = 1
	MaxSectionsPrefetch = 12
)

const (
	defaultModel            = "gpt-4o-mini"
	defaultSectionsPrefetch = 5
	defaultCacheTTL         = 6 * time.Hour
	defaultRecorderURI      = "superwhisper://record"
)

// Config carries every option the pipeline recognises.
type Config struct {
	// LLM service
	Model      string
	LLMBaseURL string
	LLMAPIKey  string

	// Task service
	TodoistToken   string
	TodoistBaseURL string // empty means the public API endpoint

	// Routing
	DefaultProjectID   string // overrides everything when set
	DefaultProjectName string
	SectionsPrefetch   int // clamped to [MinSectionsPrefetch, MaxSectionsPrefetch]
	RulesEnabled       bool

	// Capture
	RecorderURI   string
	StopSignalDir string

	// Storage
	CacheTTL time.Duration
	DataDir  string
}

// Load reads the configuration from the environment, applying defaults and
// clamping out-of-range values. It never fails; missing credentials surface
// later as HTTP errors from the services that need them.
//
// Expectations:
//   - VOICENOTE_MODEL falls back to OPENAI_MODEL, then to the default model
//   - SectionsPrefetch is clamped to [1,12]; unparsable values use the default
//   - CacheTTL accepts Go duration syntax; unparsable values use 6h
//   - DataDir defaults to ~/.local/share/voicenote
func Load() Config {
	home, _ := os.UserHomeDir()

	return Config{
		Model:      envOr("VOICENOTE_MODEL", envOr("OPENAI_MODEL", defaultModel)),
		LLMBaseURL: envOr("VOICENOTE_LLM_BASE_URL", os.Getenv("OPENAI_BASE_URL")),
		LLMAPIKey:  envOr("VOICENOTE_LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),

		TodoistToken:   os.Getenv("VOICENOTE_TODOIST_TOKEN"),
		TodoistBaseURL: os.Getenv("VOICENOTE_TODOIST_BASE_URL"),

		DefaultProjectID:   os.Getenv("VOICENOTE_DEFAULT_PROJECT_ID"),
		DefaultProjectName: os.Getenv("VOICENOTE_DEFAULT_PROJECT"),
		SectionsPrefetch:   clampInt(envInt("VOICENOTE_SECTIONS_PREFETCH", defaultSectionsPrefetch), MinSectionsPrefetch, MaxSectionsPrefetch),
		RulesEnabled:       envBool("VOICENOTE_RULES_ENABLED", true),

		RecorderURI:   envOr("VOICENOTE_RECORDER_URI", defaultRecorderURI),
		StopSignalDir: os.Getenv("VOICENOTE_STOP_SIGNAL_DIR"),

		CacheTTL: envDuration("VOICENOTE_CACHE_TTL", defaultCacheTTL),
		DataDir:  envOr("VOICENOTE_DATA_DIR", filepath.Join(home, ".local", "share", "voicenote")),
	}
}

// CacheFile is the on-disk taxonomy snapshot path.
func (c Config) CacheFile() string { return filepath.Join(c.DataDir, "taxonomy.json") }

// RulesFile is the user-editable rules document path.
func (c Config) RulesFile() string { return filepath.Join(c.DataDir, "rules.json") }

// ArchiveDir is the root for per-capture transcript files.
func (c Config) ArchiveDir() string { return filepath.Join(c.DataDir, "archive") }

// HistoryDir is the LevelDB directory for the filed-task history.
func (c Config) HistoryDir() string { return filepath.Join(c.DataDir, "history") }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
