package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultStationsURL   = "https://www.ncei.noaa.gov/pub/data/ghcn/daily/ghcnd-stations.txt"
	defaultInventoryURL  = "https://www.ncei.noaa.gov/pub/data/ghcn/daily/ghcnd-inventory.txt"
	defaultSeriesBaseURL = "https://www.ncei.noaa.gov/pub/data/ghcn/daily/by_station"
	defaultCORSOrigins   = "*,http://localhost:5173,http://127.0.0.1:5173"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	CORSAllowedOrigins []string

	// CatalogCachePath is the absolute path of the flat station catalog file.
	// Set via CATALOG_CACHE_PATH (relative paths are resolved against the process working directory at startup).
	CatalogCachePath string

	StationsURL     string
	InventoryURL    string
	SeriesBaseURL   string
	GHCNHTTPTimeout time.Duration

	// Station index database. The default DSN is a shared-cache in-memory
	// sqlite database, so MaxOpenConns should stay at 1.
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MQTTBroker empty disables catalog refresh notifications.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8000"
	}

	originsStr := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if originsStr == "" {
		originsStr = defaultCORSOrigins
	}
	origins := splitList(originsStr)

	cachePath := strings.TrimSpace(os.Getenv("CATALOG_CACHE_PATH"))
	if cachePath == "" {
		cachePath = "stations.csv"
	}
	cachePath, err = filepath.Abs(cachePath)
	if err != nil {
		return Config{}, fmt.Errorf("CATALOG_CACHE_PATH %q: %w", cachePath, err)
	}

	stationsURL, err := urlFromEnv("GHCN_STATIONS_URL", defaultStationsURL)
	if err != nil {
		return Config{}, err
	}
	inventoryURL, err := urlFromEnv("GHCN_INVENTORY_URL", defaultInventoryURL)
	if err != nil {
		return Config{}, err
	}
	seriesBaseURL, err := urlFromEnv("GHCN_SERIES_BASE_URL", defaultSeriesBaseURL)
	if err != nil {
		return Config{}, err
	}

	timeoutStr := strings.TrimSpace(os.Getenv("GHCN_HTTP_TIMEOUT"))
	if timeoutStr == "" {
		timeoutStr = "2m"
	}
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid GHCN_HTTP_TIMEOUT %q: %w", timeoutStr, err)
	}
	if timeout < 0 {
		return Config{}, fmt.Errorf("GHCN_HTTP_TIMEOUT must not be negative, got %v", timeout)
	}

	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = "file:stations?mode=memory&cache=shared"
	}

	maxOpenConnsStr := strings.TrimSpace(os.Getenv("DB_MAX_OPEN_CONNS"))
	if maxOpenConnsStr == "" {
		maxOpenConnsStr = "1"
	}
	maxOpenConns, err := strconv.Atoi(maxOpenConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %q: %w", maxOpenConnsStr, err)
	}

	maxIdleConnsStr := strings.TrimSpace(os.Getenv("DB_MAX_IDLE_CONNS"))
	if maxIdleConnsStr == "" {
		maxIdleConnsStr = "1"
	}
	maxIdleConns, err := strconv.Atoi(maxIdleConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_IDLE_CONNS %q: %w", maxIdleConnsStr, err)
	}

	connMaxLifetimeStr := strings.TrimSpace(os.Getenv("DB_CONN_MAX_LIFETIME"))
	if connMaxLifetimeStr == "" {
		connMaxLifetimeStr = "0s"
	}
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "ghcnd-server"
	}

	mqttTopic := strings.TrimSpace(os.Getenv("MQTT_TOPIC"))
	if mqttTopic == "" {
		mqttTopic = "ghcnd/catalog/refreshed"
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		CORSAllowedOrigins: origins,
		CatalogCachePath:   cachePath,
		StationsURL:        stationsURL,
		InventoryURL:       inventoryURL,
		SeriesBaseURL:      strings.TrimRight(seriesBaseURL, "/"),
		GHCNHTTPTimeout:    timeout,
		Driver:             driver,
		DSN:                dsn,
		MaxOpenConns:       maxOpenConns,
		MaxIdleConns:       maxIdleConns,
		ConnMaxLifetime:    connMaxLifetime,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
		MQTTTopic:          mqttTopic,
	}, nil
}

func urlFromEnv(key, def string) (string, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid %s %q (expected http or https URL)", key, s)
	}
	return s, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
