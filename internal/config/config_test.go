package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOverridesDefaults(t *testing.T) {
	in := `
# reader on the bench
MQTT_BROKER=tcp://broker:1883
FEED_SOURCE=serial
SERIAL_PORT=/dev/ttyUSB0
SERIAL_BAUD_RATE=57600
FEED_SENSORS=accelerometer,proximity
PAGE_COUNT=42
ADAPTIVE_THEME=false
FLICK_THRESHOLD=120.5
IMU_ACCEL_RANGE=2
`
	cfg, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.FeedSource != FeedSerial || cfg.SerialPort != "/dev/ttyUSB0" || cfg.SerialBaudRate != 57600 {
		t.Errorf("serial feed = %q %q %d", cfg.FeedSource, cfg.SerialPort, cfg.SerialBaudRate)
	}
	if cfg.PageCount != 42 || cfg.AdaptiveTheme || cfg.FlickThreshold != 120.5 || cfg.IMUAccelRange != 2 {
		t.Errorf("reader values = %+v", cfg)
	}
	if !cfg.AutoBrightness || cfg.WebServerPort != 8080 || cfg.WebStaticDir != "web" {
		t.Error("defaults were not kept for unset keys")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no equals", "MQTT_BROKER", "invalid config line 1"},
		{"unknown key", "COLOR=blue", "unknown config key"},
		{"bad range", "IMU_GYRO_RANGE=4", "IMU_GYRO_RANGE must be 0-3"},
		{"bad bool", "AUTO_BRIGHTNESS=maybe", "invalid AUTO_BRIGHTNESS"},
		{"negative", "PAGE_COUNT=-1", "PAGE_COUNT must be positive"},
		{"bad feed", "FEED_SOURCE=bluetooth", "FEED_SOURCE must be one of"},
		{"missing port", "FEED_SOURCE=serial", "SERIAL_PORT is required"},
		{"missing replay", "FEED_SOURCE=replay", "REPLAY_FILE is required"},
		{"empty broker", "MQTT_BROKER=", "MQTT_BROKER is required"},
		{"bad port", "WEB_SERVER_PORT=70000", "WEB_SERVER_PORT must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadAndGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reader.cfg")
	if err := os.WriteFile(path, []byte("PAGE_COUNT=7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PageCount != 7 {
		t.Errorf("PageCount = %d, want 7", cfg.PageCount)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.cfg")); err == nil {
		t.Error("Load of a missing file succeeded")
	}

	SetGlobal(cfg)
	if Get() != cfg {
		t.Error("Get did not return the installed config")
	}
}
