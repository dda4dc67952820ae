// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Feed sources.
const (
	FeedMQTT   = "mqtt"
	FeedSerial = "serial"
	FeedIMU    = "imu"
	FeedMock   = "mock"
	FeedReplay = "replay"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicRawPrefix string // raw sensor events in: <prefix>/<type>
	TopicMotion    string
	TopicPosition  string
	TopicProximity string
	TopicLight     string
	TopicSignal    string // reader signals (page turns, warnings)
	TopicStatus    string // reader presentation status
	TopicThemeSet  string // manual theme requests from the web UI
	TopicBacklight string // screen brightness commands to the phone

	// Sensor feed
	FeedSource        string // mqtt, serial, imu, mock or replay
	FeedSensors       string // comma separated sensor types the remote feed provides
	FeedName          string // vendor/name prefix of remote sensors
	ProximityMaxRange float64
	SerialPort        string
	SerialBaudRate    int
	ReplayFile        string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Timing
	SampleIntervalMS   int // milliseconds
	ConsoleLogInterval int // milliseconds

	// Reader
	PageCount             int
	AdaptiveTheme         bool
	AutoBrightness        bool
	FlickThreshold        float64 // degrees per second
	FlickCooldownMS       int
	FaceDistance          float64 // metres
	FaceWarningCooldownMS int

	// Web Server
	WebServerPort int
	WebStaticDir  string // empty disables the static page

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

// Default returns a configuration usable without a file: mock feed, local
// broker.
func Default() *Config {
	return &Config{
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDProducer:  "reader-producer",
		MQTTClientIDConsole:   "reader-console",
		MQTTClientIDWeb:       "reader-web",
		MQTTClientIDDisplay:   "reader-display",
		TopicRawPrefix:        "reader/raw",
		TopicMotion:           "reader/motion",
		TopicPosition:         "reader/position",
		TopicProximity:        "reader/proximity",
		TopicLight:            "reader/light",
		TopicSignal:           "reader/signal",
		TopicStatus:           "reader/status",
		TopicThemeSet:         "reader/theme/set",
		TopicBacklight:        "reader/backlight",
		FeedSource:            FeedMock,
		FeedSensors:           "accelerometer,gyroscope,magnetometer,proximity,light,color",
		FeedName:              "Phone",
		ProximityMaxRange:     5.0,
		SerialBaudRate:        115200,
		IMUSPIDevice:          "/dev/spidev0.0",
		IMUCSPin:              "GPIO8",
		SampleIntervalMS:      20,
		ConsoleLogInterval:    500,
		PageCount:             20,
		AdaptiveTheme:         true,
		AutoBrightness:        true,
		FlickThreshold:        150,
		FlickCooldownMS:       5000,
		FaceDistance:          0.30,
		FaceWarningCooldownMS: 3000,
		WebServerPort:         8080,
		WebStaticDir:          "web",
		DisplayI2CBus:         "",
		DisplayUpdateInterval: 500,
	}
}

// Package-level singleton:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: InitGlobal only loads once.
//   - configMu: write lock for initialization, read lock for Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file on top of Default and validates it.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r. Blank lines and lines starting with
// '#' are ignored.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_RAW_PREFIX":
		c.TopicRawPrefix = value
	case "TOPIC_MOTION":
		c.TopicMotion = value
	case "TOPIC_POSITION":
		c.TopicPosition = value
	case "TOPIC_PROXIMITY":
		c.TopicProximity = value
	case "TOPIC_LIGHT":
		c.TopicLight = value
	case "TOPIC_SIGNAL":
		c.TopicSignal = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_THEME_SET":
		c.TopicThemeSet = value
	case "TOPIC_BACKLIGHT":
		c.TopicBacklight = value

	// Sensor feed
	case "FEED_SOURCE":
		switch value {
		case FeedMQTT, FeedSerial, FeedIMU, FeedMock, FeedReplay:
			c.FeedSource = value
		default:
			return fmt.Errorf("FEED_SOURCE must be one of mqtt, serial, imu, mock, replay, got %q", value)
		}
	case "FEED_SENSORS":
		c.FeedSensors = value
	case "FEED_NAME":
		c.FeedName = value
	case "PROXIMITY_MAX_RANGE":
		return parsePositiveFloat(key, value, &c.ProximityMaxRange)
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		return parsePositiveInt(key, value, &c.SerialBaudRate)
	case "REPLAY_FILE":
		c.ReplayFile = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Timing
	case "SAMPLE_INTERVAL":
		return parsePositiveInt(key, value, &c.SampleIntervalMS)
	case "CONSOLE_LOG_INTERVAL":
		return parsePositiveInt(key, value, &c.ConsoleLogInterval)

	// Reader
	case "PAGE_COUNT":
		return parsePositiveInt(key, value, &c.PageCount)
	case "ADAPTIVE_THEME":
		return parseBool(key, value, &c.AdaptiveTheme)
	case "AUTO_BRIGHTNESS":
		return parseBool(key, value, &c.AutoBrightness)
	case "FLICK_THRESHOLD":
		return parsePositiveFloat(key, value, &c.FlickThreshold)
	case "FLICK_COOLDOWN":
		return parsePositiveInt(key, value, &c.FlickCooldownMS)
	case "FACE_DISTANCE":
		return parsePositiveFloat(key, value, &c.FaceDistance)
	case "FACE_WARNING_COOLDOWN":
		return parsePositiveInt(key, value, &c.FaceWarningCooldownMS)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		return parsePositiveInt(key, value, &c.DisplayUpdateInterval)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parsePositiveInt(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", key, v)
	}
	*dst = v
	return nil
}

func parsePositiveFloat(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %v", key, v)
	}
	*dst = v
	return nil
}

func parseBool(key, value string, dst *bool) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// validate checks that the fields the selected feed needs are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.FeedSource {
	case FeedSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for the serial feed")
		}
	case FeedIMU:
		if c.IMUSPIDevice == "" || c.IMUCSPin == "" {
			return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required for the imu feed")
		}
	case FeedReplay:
		if c.ReplayFile == "" {
			return fmt.Errorf("REPLAY_FILE is required for the replay feed")
		}
	case FeedMQTT:
		if c.TopicRawPrefix == "" {
			return fmt.Errorf("TOPIC_RAW_PREFIX is required for the mqtt feed")
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Only the first
// call loads.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// SetGlobal installs cfg as the global configuration.
func SetGlobal(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = cfg
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
