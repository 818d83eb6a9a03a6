package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

var keys = []string{
	"APP_ENV", "LOG_LEVEL", "PORT", "WAQI_TOKEN", "WAQI_BASE_URL", "HTTP_TIMEOUT",
	"LOCATE_TIMEOUT", "PROVIDER_TIMEOUT", "PERSIST_TIMEOUT", "ACQUIRE_MAX_RETRIES",
	"HISTORY_BACKEND", "HISTORY_MAX_ENTRIES", "SQLITE_PATH", "PAIRING_DB_PATH",
	"DEVICE_SIM_LATENCY", "BLE_ADAPTER", "BLE_NAME_PREFIX", "BLE_SCAN_TIMEOUT",
	"GEOIP_DB_PATH", "GEOCODER_API_KEY", "WATCH_LOCATIONS", "WATCH_INTERVAL",
	"MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX",
}

// clearEnv blanks every key; blank means default.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}

	if cfg.AppEnv != "dev" || cfg.Port != "8080" || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected basics: %+v", cfg)
	}
	if cfg.WAQIBaseURL != "https://api.waqi.info" || cfg.WAQIToken != "" {
		t.Fatalf("unexpected waqi config: %q %q", cfg.WAQIBaseURL, cfg.WAQIToken)
	}
	if cfg.HTTPTimeout != 20*time.Second || cfg.LocateTimeout != 10*time.Second ||
		cfg.ProviderTimeout != 15*time.Second || cfg.PersistTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg)
	}
	if cfg.AcquireMaxRetries != 0 || cfg.HistoryBackend != BackendMemory || cfg.HistoryMaxEntries != 0 {
		t.Fatalf("unexpected acquisition config: %+v", cfg)
	}
	if cfg.WatchInterval != 15*time.Minute || len(cfg.WatchLocations) != 0 {
		t.Fatalf("unexpected watch config: %+v", cfg)
	}
	if cfg.MQTTBroker != "" || cfg.MQTTPort != 1883 || cfg.MQTTTopicPrefix != "airvita" {
		t.Fatalf("unexpected mqtt config: %+v", cfg)
	}
	if cfg.BLEAdapter != "hci0" || cfg.BLENamePrefix != "AirVita" || cfg.BLEScanTimeout != 15*time.Second {
		t.Fatalf("unexpected ble config: %+v", cfg)
	}
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WAQI_TOKEN", "secret")
	t.Setenv("WAQI_BASE_URL", "http://localhost:9999/")
	t.Setenv("ACQUIRE_MAX_RETRIES", "2")
	t.Setenv("HISTORY_BACKEND", "SQLite")
	t.Setenv("WATCH_LOCATIONS", "sf=37.7749,-122.4194; paris = 48.8566 , 2.3522")

	cfg, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.WAQIToken != "secret" || cfg.WAQIBaseURL != "http://localhost:9999" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.AcquireMaxRetries != 2 || cfg.HistoryBackend != BackendSQLite {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.WatchLocations) != 2 {
		t.Fatalf("watch locations = %+v", cfg.WatchLocations)
	}
	if w := cfg.WatchLocations[1]; w.Label != "paris" || w.Coordinates.Latitude != 48.8566 || w.Coordinates.Longitude != 2.3522 {
		t.Fatalf("second watch location = %+v", w)
	}
}

func TestInvalidValues(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"PROVIDER_TIMEOUT", "soon", "PROVIDER_TIMEOUT"},
		{"LOCATE_TIMEOUT", "-1s", "LOCATE_TIMEOUT"},
		{"LOCATE_TIMEOUT", "0s", "LOCATE_TIMEOUT"},
		{"PROVIDER_TIMEOUT", "0s", "PROVIDER_TIMEOUT"},
		{"PERSIST_TIMEOUT", "0", "PERSIST_TIMEOUT"},
		{"HTTP_TIMEOUT", "0s", "HTTP_TIMEOUT"},
		{"BLE_SCAN_TIMEOUT", "0s", "BLE_SCAN_TIMEOUT"},
		{"DEVICE_SIM_LATENCY", "-5ms", "DEVICE_SIM_LATENCY"},
		{"WATCH_INTERVAL", "30s", "WATCH_INTERVAL"},
		{"WATCH_INTERVAL", "0s", "WATCH_INTERVAL"},
		{"ACQUIRE_MAX_RETRIES", "two", "ACQUIRE_MAX_RETRIES"},
		{"ACQUIRE_MAX_RETRIES", "-1", "ACQUIRE_MAX_RETRIES"},
		{"HISTORY_BACKEND", "postgres", "HISTORY_BACKEND"},
		{"MQTT_PORT", "abc", "MQTT_PORT"},
		{"WATCH_LOCATIONS", "nowhere", "WATCH_LOCATIONS"},
		{"WATCH_LOCATIONS", "x=91,0", "latitude"},
		{"WATCH_LOCATIONS", "x=0,181", "longitude"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := fromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestZeroSimLatencyAllowed(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVICE_SIM_LATENCY", "0s")
	t.Setenv("WATCH_INTERVAL", "1m")
	cfg, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}
	if cfg.DeviceSimLatency != 0 || cfg.WatchInterval != time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
}
