// Package startup loads and validates configuration from environment
// variables and logs the effective settings at boot.
package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"photo-tagger/internal/discovery"
	"photo-tagger/internal/logging"
	"photo-tagger/internal/pathkey"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	GoVersion = runtime.Version()
)

// Provider names accepted in AI_PROVIDER.
const (
	ProviderGemini  = "gemini"
	ProviderMistral = "mistral"
)

// Default models per provider, matching the upstream services.
const (
	defaultGeminiModel  = "gemini-2.5-flash"
	defaultMistralModel = "pixtral-12b-2409"
)

// Config holds all application configuration
type Config struct {
	PhotosDir     string
	Mode          discovery.Mode
	AnchorSegment string

	DailyBatchLimit   int
	RequestsPerMinute int

	StateDir     string
	DatabasePath string

	Provider string
	Model    string
	APIKey   string

	ApplicationLog string
	StatusLog      string

	HTTPTimeout       time.Duration
	MaxImageDimension int

	MetricsEnabled bool
	MetricsPort    string
}

// LoadConfig loads and validates configuration from environment variables.
// Configuration errors are fatal: they are returned before any I/O so the
// caller can abort without touching state.
func LoadConfig() (*Config, error) {
	printBanner()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	photosDir := getEnv("PHOTOS_DIR", "./photos")
	modeStr := getEnv("SCAN_MODE", "backlog")
	anchor := getEnv("ANCHOR_SEGMENT", pathkey.DefaultAnchor)
	dailyLimit := getEnvInt("DAILY_BATCH_LIMIT", 500)
	requestsPerMinute := getEnvInt("REQUESTS_PER_MINUTE", 15)
	stateDir := getEnv("STATE_DIR", "./state")
	provider := strings.ToLower(getEnv("AI_PROVIDER", ProviderGemini))
	model := getEnv("MODEL_NAME", "")
	applicationLog := getEnv("APPLICATION_LOG", "application.log")
	statusLog := getEnv("STATUS_LOG", "status.log")
	httpTimeoutStr := getEnv("HTTP_TIMEOUT", "2m")
	maxDim := getEnvInt("MAX_IMAGE_DIMENSION", 2048)
	metricsEnabled := getEnvBool("METRICS_ENABLED", false)
	metricsPort := getEnv("METRICS_PORT", "9090")

	logging.Info("  PHOTOS_DIR:          %s", photosDir)
	logging.Info("  SCAN_MODE:           %s", modeStr)
	logging.Info("  ANCHOR_SEGMENT:      %s", anchor)
	logging.Info("  DAILY_BATCH_LIMIT:   %d", dailyLimit)
	logging.Info("  REQUESTS_PER_MINUTE: %d", requestsPerMinute)
	logging.Info("  STATE_DIR:           %s", stateDir)
	logging.Info("  AI_PROVIDER:         %s", provider)
	logging.Info("  APPLICATION_LOG:     %s", applicationLog)
	logging.Info("  STATUS_LOG:          %s", statusLog)
	logging.Info("  HTTP_TIMEOUT:        %s", httpTimeoutStr)
	logging.Info("  MAX_IMAGE_DIMENSION: %d", maxDim)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	mode, err := discovery.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	if dailyLimit <= 0 {
		return nil, fmt.Errorf("DAILY_BATCH_LIMIT must be positive, got %d", dailyLimit)
	}
	if requestsPerMinute <= 0 {
		return nil, fmt.Errorf("REQUESTS_PER_MINUTE must be positive, got %d", requestsPerMinute)
	}
	if maxDim < 0 {
		return nil, fmt.Errorf("MAX_IMAGE_DIMENSION must not be negative, got %d", maxDim)
	}

	httpTimeout, err := time.ParseDuration(httpTimeoutStr)
	if err != nil || httpTimeout <= 0 {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT %q", httpTimeoutStr)
	}

	photosDir, err = filepath.Abs(photosDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve photos directory path: %w", err)
	}
	info, err := os.Stat(photosDir)
	if err != nil {
		return nil, fmt.Errorf("photos directory does not exist: %s", photosDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("photos path is not a directory: %s", photosDir)
	}

	stateDir, err = filepath.Abs(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory path: %w", err)
	}
	if err := ensureDirectory(stateDir); err != nil {
		return nil, fmt.Errorf("state directory unusable: %w", err)
	}

	var apiKey string
	switch provider {
	case ProviderGemini:
		apiKey = os.Getenv("API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("API_KEY is required for the gemini provider")
		}
		if model == "" {
			model = defaultGeminiModel
		}
	case ProviderMistral:
		apiKey = os.Getenv("MISTRAL_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("MISTRAL_API_KEY is required for the mistral provider")
		}
		if model == "" {
			model = defaultMistralModel
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider %q (use gemini or mistral)", provider)
	}
	logging.Info("  MODEL_NAME:          %s", model)

	return &Config{
		PhotosDir:         photosDir,
		Mode:              mode,
		AnchorSegment:     anchor,
		DailyBatchLimit:   dailyLimit,
		RequestsPerMinute: requestsPerMinute,
		StateDir:          stateDir,
		DatabasePath:      filepath.Join(stateDir, "photo-tagger.db"),
		Provider:          provider,
		Model:             model,
		APIKey:            apiKey,
		ApplicationLog:    applicationLog,
		StatusLog:         statusLog,
		HTTPTimeout:       httpTimeout,
		MaxImageDimension: maxDim,
		MetricsEnabled:    metricsEnabled,
		MetricsPort:       metricsPort,
	}, nil
}

// LogFatal logs a fatal startup error and exits with a non-zero status.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	logging.Printf("photo-tagger %s (%s) %s %s/%s", Version, Commit, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// ensureDirectory creates the directory if needed and verifies it is
// writable.
func ensureDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}

	testFile := filepath.Join(path, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("%s is not writable: %w", path, err)
	}
	_ = os.Remove(testFile)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	logging.Warn("  Invalid %s value %q, using default %d", key, value, defaultValue)
	return defaultValue
}
