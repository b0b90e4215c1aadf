// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"encoding/json"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Directories
	TempDir  string
	StateDir string

	// Network
	ListenAddress   string
	Port            int
	BaseURL         string
	APIMaxBodyBytes int

	// Token links
	EncryptionKey   string
	DownloadLinkTTL time.Duration

	// Cache
	RedisURL           string
	SessionTTL         time.Duration
	MetadataTTL        time.Duration
	MemoryCacheEntries int

	// Extraction
	ExtractorBinary   string
	ExtractionTimeout time.Duration
	BlockPatterns     []string
	SupportedDomains  []string

	// Streaming
	StreamTimeout time.Duration

	// VPN fleet
	VPNConfigPath     string
	GluetunUsername   string
	GluetunPassword   string
	VPNCooldown       time.Duration
	VPNMaxAttempts    int
	VPNStatusInterval time.Duration
	VPNEgressInstance string

	// GeoIP
	GeoIPDBPath string

	// Temp cleanup
	CleanupSchedule string
	TempMaxAge      time.Duration

	// Request log
	RequestLogQueueSize           int
	RequestLogQueueFlushBatchSize int
	RequestLogQueueFlushInterval  time.Duration

	// Auth
	AdminToken string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. All problems are accumulated and reported together.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories ---
	cfg.TempDir = envStr("STREAMGATE_TEMP_DIR", "/tmp/streamgate")
	cfg.StateDir = envStr("STREAMGATE_STATE_DIR", "/var/lib/streamgate")

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("STREAMGATE_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("STREAMGATE_PORT", 8025, &errs)
	cfg.BaseURL = strings.TrimRight(envStr("STREAMGATE_BASE_URL", ""), "/")
	cfg.APIMaxBodyBytes = envInt("STREAMGATE_API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Token links ---
	cfg.EncryptionKey = os.Getenv("STREAMGATE_ENCRYPTION_KEY")
	cfg.DownloadLinkTTL = envDuration("STREAMGATE_DOWNLOAD_LINK_TTL", 30*time.Minute, &errs)

	// --- Cache ---
	cfg.RedisURL = envStr("STREAMGATE_REDIS_URL", "")
	cfg.SessionTTL = envDuration("STREAMGATE_SESSION_TTL", 300*time.Second, &errs)
	cfg.MetadataTTL = envDuration("STREAMGATE_METADATA_TTL", 3*time.Minute, &errs)
	cfg.MemoryCacheEntries = envInt("STREAMGATE_MEMORY_CACHE_ENTRIES", 4096, &errs)

	// --- Extraction ---
	cfg.ExtractorBinary = envStr("STREAMGATE_EXTRACTOR_BINARY", "yt-dlp")
	cfg.ExtractionTimeout = envDuration("STREAMGATE_EXTRACTION_TIMEOUT", 45*time.Second, &errs)
	cfg.BlockPatterns = envStringSlice("STREAMGATE_BLOCK_PATTERNS", []string{}, &errs)
	cfg.SupportedDomains = envStringSlice("STREAMGATE_SUPPORTED_DOMAINS",
		[]string{"tiktok.com", "douyin.com", "twitter.com", "x.com", "t.co"}, &errs)

	// --- Streaming ---
	cfg.StreamTimeout = envDuration("STREAMGATE_STREAM_TIMEOUT", 300*time.Second, &errs)

	// --- VPN fleet ---
	cfg.VPNConfigPath = envStr("STREAMGATE_VPN_CONFIG_PATH", "")
	cfg.GluetunUsername = envStr("STREAMGATE_GLUETUN_USERNAME", "admin")
	cfg.GluetunPassword = envStr("STREAMGATE_GLUETUN_PASSWORD", "")
	cfg.VPNCooldown = envDuration("STREAMGATE_VPN_COOLDOWN", 30*time.Second, &errs)
	cfg.VPNMaxAttempts = envInt("STREAMGATE_VPN_MAX_ATTEMPTS", 3, &errs)
	cfg.VPNStatusInterval = envDuration("STREAMGATE_VPN_STATUS_INTERVAL", 30*time.Second, &errs)
	cfg.VPNEgressInstance = envStr("STREAMGATE_VPN_EGRESS_INSTANCE", "")

	// --- GeoIP ---
	cfg.GeoIPDBPath = envStr("STREAMGATE_GEOIP_DB_PATH", "")

	// --- Temp cleanup ---
	cfg.CleanupSchedule = envStr("STREAMGATE_CLEANUP_SCHEDULE", "*/15 * * * *")
	cfg.TempMaxAge = envDuration("STREAMGATE_TEMP_MAX_AGE", time.Hour, &errs)

	// --- Request log ---
	cfg.RequestLogQueueSize = envInt("STREAMGATE_REQUEST_LOG_QUEUE_SIZE", 8192, &errs)
	cfg.RequestLogQueueFlushBatchSize = envInt("STREAMGATE_REQUEST_LOG_QUEUE_FLUSH_BATCH_SIZE", 1024, &errs)
	cfg.RequestLogQueueFlushInterval = envDuration("STREAMGATE_REQUEST_LOG_QUEUE_FLUSH_INTERVAL", 30*time.Second, &errs)

	// --- Auth (must be defined; empty means admin API disabled) ---
	adminToken, hasAdminToken := os.LookupEnv("STREAMGATE_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	// --- Validation ---
	if cfg.EncryptionKey == "" {
		errs = append(errs, "STREAMGATE_ENCRYPTION_KEY must be set and non-empty")
	}
	if !hasAdminToken {
		errs = append(errs, "STREAMGATE_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "STREAMGATE_LISTEN_ADDRESS must not be empty")
	}
	validatePort("STREAMGATE_PORT", cfg.Port, &errs)
	validatePositive("STREAMGATE_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	validatePositive("STREAMGATE_MEMORY_CACHE_ENTRIES", cfg.MemoryCacheEntries, &errs)
	validatePositive("STREAMGATE_VPN_MAX_ATTEMPTS", cfg.VPNMaxAttempts, &errs)
	validatePositive("STREAMGATE_REQUEST_LOG_QUEUE_SIZE", cfg.RequestLogQueueSize, &errs)
	validatePositive("STREAMGATE_REQUEST_LOG_QUEUE_FLUSH_BATCH_SIZE", cfg.RequestLogQueueFlushBatchSize, &errs)

	validatePositiveDuration("STREAMGATE_DOWNLOAD_LINK_TTL", cfg.DownloadLinkTTL, &errs)
	validatePositiveDuration("STREAMGATE_SESSION_TTL", cfg.SessionTTL, &errs)
	validatePositiveDuration("STREAMGATE_METADATA_TTL", cfg.MetadataTTL, &errs)
	validatePositiveDuration("STREAMGATE_EXTRACTION_TIMEOUT", cfg.ExtractionTimeout, &errs)
	validatePositiveDuration("STREAMGATE_STREAM_TIMEOUT", cfg.StreamTimeout, &errs)
	validatePositiveDuration("STREAMGATE_VPN_COOLDOWN", cfg.VPNCooldown, &errs)
	validatePositiveDuration("STREAMGATE_VPN_STATUS_INTERVAL", cfg.VPNStatusInterval, &errs)
	validatePositiveDuration("STREAMGATE_TEMP_MAX_AGE", cfg.TempMaxAge, &errs)
	validatePositiveDuration("STREAMGATE_REQUEST_LOG_QUEUE_FLUSH_INTERVAL", cfg.RequestLogQueueFlushInterval, &errs)

	if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("STREAMGATE_CLEANUP_SCHEDULE: invalid cron expression %q: %v", cfg.CleanupSchedule, err))
	}
	if cfg.RequestLogQueueSize < 2*cfg.RequestLogQueueFlushBatchSize {
		errs = append(errs, "STREAMGATE_REQUEST_LOG_QUEUE_SIZE must be at least 2x STREAMGATE_REQUEST_LOG_QUEUE_FLUSH_BATCH_SIZE")
	}
	if cfg.VPNConfigPath != "" && cfg.GluetunPassword == "" {
		errs = append(errs, "STREAMGATE_GLUETUN_PASSWORD must be set when STREAMGATE_VPN_CONFIG_PATH is configured")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func envStringSlice(key string, defaultVal []string, errs *[]string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid JSON string array %q", key, v))
		return defaultVal
	}
	if out == nil {
		return []string{}
	}
	return out
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validatePositiveDuration(name string, value time.Duration, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be a positive duration, got %s", name, value))
	}
}
