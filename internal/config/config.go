package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath string
	LogDir   string
	CacheDir string

	// AnonymizationSalt seeds the per-batch entity anonymization. Deployments
	// must set it; the default only keeps development friction low.
	AnonymizationSalt string

	WindowDays      int           // anomaly detection lookback
	HistoryDays     int           // provider history pulled per refresh
	RefreshInterval time.Duration // scheduler tick
	DemoMode        bool          // serve synthetic data instead of a live provider
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")

	// Ensure directories exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	refreshSecs := getEnvInt("REFRESH_INTERVAL_SECONDS", 30)

	cfg := &AppConfig{
		DataPath:          dataPath,
		LogDir:            logDir,
		CacheDir:          cacheDir,
		AnonymizationSalt: getEnv("ANONYMIZATION_SALT", "edubench-dev-salt"),
		WindowDays:        getEnvInt("ANOMALY_WINDOW_DAYS", 30),
		HistoryDays:       getEnvInt("HISTORY_DAYS", 90),
		RefreshInterval:   time.Duration(refreshSecs) * time.Second,
		DemoMode:          getEnvBool("DEMO_MODE", true),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
