package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/madankumar045/airvitaweb/internal/airquality"
	"github.com/madankumar045/airvitaweb/internal/logging"
)

// History backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// WatchLocation is a fixed place acquired periodically in the background.
type WatchLocation struct {
	Label       string
	Coordinates airquality.Coordinates
}

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	WAQIToken   string
	WAQIBaseURL string

	// Outbound http.Client timeout.
	HTTPTimeout time.Duration

	LocateTimeout     time.Duration
	ProviderTimeout   time.Duration
	PersistTimeout    time.Duration
	AcquireMaxRetries int

	HistoryBackend    string
	HistoryMaxEntries int // memory backend cap per identity (0 = unlimited)
	SQLitePath        string

	PairingDBPath    string
	DeviceSimLatency time.Duration
	BLEAdapter       string
	BLENamePrefix    string
	BLEScanTimeout   time.Duration

	GeoIPDBPath    string
	GeocoderAPIKey string

	WatchLocations []WatchLocation
	WatchInterval  time.Duration

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return fromEnv()
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	cfg.LogLevel = logging.ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	cfg.Port = getenvDefault("PORT", "8080")

	// A missing token disables the provider, it does not block startup.
	cfg.WAQIToken = os.Getenv("WAQI_TOKEN")
	cfg.WAQIBaseURL = strings.TrimRight(getenvDefault("WAQI_BASE_URL", "https://api.waqi.info"), "/")

	// floor is the smallest accepted value. Timeouts must be positive, and
	// the watch job runs on whole minutes.
	durations := []struct {
		key   string
		def   string
		floor time.Duration
		dest  *time.Duration
	}{
		{"HTTP_TIMEOUT", "20s", time.Millisecond, &cfg.HTTPTimeout},
		{"LOCATE_TIMEOUT", "10s", time.Millisecond, &cfg.LocateTimeout},
		{"PROVIDER_TIMEOUT", "15s", time.Millisecond, &cfg.ProviderTimeout},
		{"PERSIST_TIMEOUT", "5s", time.Millisecond, &cfg.PersistTimeout},
		{"DEVICE_SIM_LATENCY", "0s", 0, &cfg.DeviceSimLatency},
		{"BLE_SCAN_TIMEOUT", "15s", time.Millisecond, &cfg.BLEScanTimeout},
		{"WATCH_INTERVAL", "15m", time.Minute, &cfg.WatchInterval},
	}
	for _, d := range durations {
		if *d.dest, err = getenvDuration(d.key, d.def, d.floor); err != nil {
			return nil, err
		}
	}

	if cfg.AcquireMaxRetries, err = getenvInt("ACQUIRE_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.AcquireMaxRetries < 0 {
		return nil, fmt.Errorf("invalid ACQUIRE_MAX_RETRIES: must be >= 0")
	}

	cfg.HistoryBackend = strings.ToLower(getenvDefault("HISTORY_BACKEND", BackendMemory))
	if cfg.HistoryBackend != BackendMemory && cfg.HistoryBackend != BackendSQLite {
		return nil, fmt.Errorf("invalid HISTORY_BACKEND %q: want %s or %s", cfg.HistoryBackend, BackendMemory, BackendSQLite)
	}
	if cfg.HistoryMaxEntries, err = getenvInt("HISTORY_MAX_ENTRIES", 0); err != nil {
		return nil, err
	}
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "data/airvita.db")

	cfg.PairingDBPath = getenvDefault("PAIRING_DB_PATH", "data/pairing.db")
	cfg.BLEAdapter = getenvDefault("BLE_ADAPTER", "hci0")
	cfg.BLENamePrefix = getenvDefault("BLE_NAME_PREFIX", "AirVita")

	cfg.GeoIPDBPath = os.Getenv("GEOIP_DB_PATH")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	if cfg.WatchLocations, err = parseWatchLocations(os.Getenv("WATCH_LOCATIONS")); err != nil {
		return nil, err
	}

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	if cfg.MQTTPort, err = getenvInt("MQTT_PORT", 1883); err != nil {
		return nil, err
	}
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "airvita")
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", "airvita")

	return cfg, nil
}

// parseWatchLocations reads "label=lat,lon;label=lat,lon".
func parseWatchLocations(s string) ([]WatchLocation, error) {
	var locs []WatchLocation
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		label, pair, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("invalid WATCH_LOCATIONS entry %q: want label=lat,lon", entry)
		}
		latStr, lonStr, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("invalid WATCH_LOCATIONS entry %q: want label=lat,lon", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in WATCH_LOCATIONS entry %q", entry)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in WATCH_LOCATIONS entry %q", entry)
		}
		locs = append(locs, WatchLocation{
			Label:       strings.TrimSpace(label),
			Coordinates: airquality.Coordinates{Latitude: lat, Longitude: lon},
		})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string, floor time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < floor {
		if floor == 0 {
			return 0, fmt.Errorf("invalid %s: must not be negative", key)
		}
		return 0, fmt.Errorf("invalid %s: must be at least %s", key, floor)
	}
	return d, nil
}
