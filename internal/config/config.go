package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/motion_engine/internal/imu"
)

// Config holds all application configuration values.
type Config struct {
	// Hardware
	I2CBus       string
	InterruptPin string

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTClientIDHeading  string

	// Topics
	TopicSample    string
	TopicPoseFused string
	TopicHeading   string

	// Sensor configuration
	DMPSampleRate       int
	AccelFSR            int // g: 2, 4, 8 or 16
	GyroFSR             int // °/s: 250, 500, 1000 or 2000
	GyroDLPF            int // filter code 0-6
	AccelDLPF           int // filter code 0-6
	EnableMag           bool
	Orientation         string
	CompassTimeConstant float64
	InterruptPriority   int
	ShowWarnings        bool

	// Files
	CalibrationDir  string
	DMPFirmwarePath string
	MaxCalAttempts  int

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds

	// GPS
	GPSSerialPort string
	GPSBaudRate   int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
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

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults mirrors the sensor library defaults so a minimal config file
// only needs the hardware and broker entries.
func defaults() *Config {
	d := imu.DefaultConfig()
	return &Config{
		InterruptPin: "GPIO4",

		MQTTClientIDProducer: "motion-producer",
		MQTTClientIDConsole:  "motion-console-subscriber",
		MQTTClientIDWeb:      "motion-web-subscriber",
		MQTTClientIDDisplay:  "motion-display-subscriber",
		MQTTClientIDHeading:  "motion-heading-producer",

		TopicSample:    "motion/sample",
		TopicPoseFused: "motion/pose/fused",
		TopicHeading:   "motion/heading",

		DMPSampleRate:       d.SampleRate,
		AccelFSR:            int(d.AccelFSR.G()),
		GyroFSR:             int(d.GyroFSR.DPS()),
		GyroDLPF:            int(d.GyroDLPF),
		AccelDLPF:           int(d.AccelDLPF),
		EnableMag:           d.EnableMag,
		Orientation:         d.Orientation.String(),
		CompassTimeConstant: d.CompassTimeConstant,
		InterruptPriority:   d.InterruptPriority,
		CalibrationDir:      d.CalibrationDir,
		MaxCalAttempts:      d.MaxCalibrationAttempts,

		ConsoleLogInterval:    500,
		WebServerPort:         8080,
		DisplayUpdateInterval: 200,

		GPSSerialPort: "/dev/ttyAMA0",
		GPSBaudRate:   9600,
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "INTERRUPT_PIN":
		c.InterruptPin = value

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
	case "MQTT_CLIENT_ID_HEADING":
		c.MQTTClientIDHeading = value

	// Topics
	case "TOPIC_SAMPLE":
		c.TopicSample = value
	case "TOPIC_POSE_FUSED":
		c.TopicPoseFused = value
	case "TOPIC_HEADING":
		c.TopicHeading = value

	// Sensor configuration
	case "DMP_SAMPLE_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DMP_SAMPLE_RATE %q: %w", value, err)
		}
		c.DMPSampleRate = rate
	case "ACCEL_FSR":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ACCEL_FSR %q: %w", value, err)
		}
		if val != 2 && val != 4 && val != 8 && val != 16 {
			return fmt.Errorf("ACCEL_FSR must be 2, 4, 8 or 16 (g), got %d", val)
		}
		c.AccelFSR = val
	case "GYRO_FSR":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_FSR %q: %w", value, err)
		}
		if val != 250 && val != 500 && val != 1000 && val != 2000 {
			return fmt.Errorf("GYRO_FSR must be 250, 500, 1000 or 2000 (°/s), got %d", val)
		}
		c.GyroFSR = val
	case "GYRO_DLPF":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_DLPF %q: %w", value, err)
		}
		if val < 0 || val > 6 {
			return fmt.Errorf("GYRO_DLPF must be 0-6 (0=off, 1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz), got %d", val)
		}
		c.GyroDLPF = val
	case "ACCEL_DLPF":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ACCEL_DLPF %q: %w", value, err)
		}
		if val < 0 || val > 6 {
			return fmt.Errorf("ACCEL_DLPF must be 0-6 (0=off, 1=184Hz, 2=92Hz, 3=41Hz, 4=20Hz, 5=10Hz, 6=5Hz), got %d", val)
		}
		c.AccelDLPF = val
	case "ENABLE_MAG":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid ENABLE_MAG %q: %w", value, err)
		}
		c.EnableMag = enabled
	case "ORIENTATION":
		if _, err := imu.ParseOrientation(value); err != nil {
			return fmt.Errorf("invalid ORIENTATION %q", value)
		}
		c.Orientation = value
	case "COMPASS_TIME_CONSTANT":
		tc, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid COMPASS_TIME_CONSTANT %q: %w", value, err)
		}
		c.CompassTimeConstant = tc
	case "INTERRUPT_PRIORITY":
		prio, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid INTERRUPT_PRIORITY %q: %w", value, err)
		}
		if prio < 0 || prio > 99 {
			return fmt.Errorf("INTERRUPT_PRIORITY must be 0-99, got %d", prio)
		}
		c.InterruptPriority = prio
	case "SHOW_WARNINGS":
		show, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SHOW_WARNINGS %q: %w", value, err)
		}
		c.ShowWarnings = show

	// Files
	case "CALIBRATION_DIR":
		c.CalibrationDir = value
	case "DMP_FIRMWARE_PATH":
		c.DMPFirmwarePath = value
	case "MAX_CAL_ATTEMPTS":
		attempts, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_CAL_ATTEMPTS %q: %w", value, err)
		}
		if attempts < 1 {
			return fmt.Errorf("MAX_CAL_ATTEMPTS must be at least 1, got %d", attempts)
		}
		c.MaxCalAttempts = attempts

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.I2CBus == "" {
		return fmt.Errorf("I2C_BUS is required")
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.DMPFirmwarePath == "" {
		return fmt.Errorf("DMP_FIRMWARE_PATH is required")
	}
	return nil
}

// IMUConfig maps the file-level values onto the sensor library's
// configuration struct.
func (c *Config) IMUConfig() (imu.Config, error) {
	cfg := imu.DefaultConfig()

	switch c.AccelFSR {
	case 2:
		cfg.AccelFSR = imu.AccelFSR2G
	case 4:
		cfg.AccelFSR = imu.AccelFSR4G
	case 8:
		cfg.AccelFSR = imu.AccelFSR8G
	case 16:
		cfg.AccelFSR = imu.AccelFSR16G
	}
	switch c.GyroFSR {
	case 250:
		cfg.GyroFSR = imu.GyroFSR250DPS
	case 500:
		cfg.GyroFSR = imu.GyroFSR500DPS
	case 1000:
		cfg.GyroFSR = imu.GyroFSR1000DPS
	case 2000:
		cfg.GyroFSR = imu.GyroFSR2000DPS
	}
	cfg.GyroDLPF = imu.DLPF(c.GyroDLPF)
	cfg.AccelDLPF = imu.DLPF(c.AccelDLPF)
	cfg.SampleRate = c.DMPSampleRate
	cfg.EnableMag = c.EnableMag
	cfg.CompassTimeConstant = c.CompassTimeConstant
	cfg.InterruptPriority = c.InterruptPriority
	cfg.ShowWarnings = c.ShowWarnings
	cfg.MaxCalibrationAttempts = c.MaxCalAttempts
	if c.CalibrationDir != "" {
		cfg.CalibrationDir = c.CalibrationDir
	}

	orient, err := imu.ParseOrientation(c.Orientation)
	if err != nil {
		return cfg, err
	}
	cfg.Orientation = orient

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
