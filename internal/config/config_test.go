package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relabs-tech/motion_engine/internal/imu"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion_config.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
# hardware
I2C_BUS=/dev/i2c-1
MQTT_BROKER=tcp://localhost:1883
DMP_FIRMWARE_PATH=/usr/share/motion_engine/dmp.fw
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.I2CBus != "/dev/i2c-1" {
		t.Errorf("I2CBus = %q", cfg.I2CBus)
	}
	// Everything else falls back to defaults.
	if cfg.DMPSampleRate != 100 {
		t.Errorf("DMPSampleRate = %d, want default 100", cfg.DMPSampleRate)
	}
	if cfg.Orientation != "Z_UP" {
		t.Errorf("Orientation = %q, want default Z_UP", cfg.Orientation)
	}
	if cfg.WebServerPort != 8080 {
		t.Errorf("WebServerPort = %d, want default 8080", cfg.WebServerPort)
	}
	if cfg.TopicPoseFused == "" {
		t.Errorf("TopicPoseFused has no default")
	}
}

func TestLoadFullOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
DMP_SAMPLE_RATE=50
ACCEL_FSR=8
GYRO_FSR=2000
GYRO_DLPF=3
ACCEL_DLPF=0
ENABLE_MAG=false
ORIENTATION=X_FORWARD
COMPASS_TIME_CONSTANT=2.5
INTERRUPT_PRIORITY=40
SHOW_WARNINGS=true
CALIBRATION_DIR=/tmp/cal
MAX_CAL_ATTEMPTS=5
GPS_SERIAL_PORT=/dev/ttyUSB0
GPS_BAUD_RATE=4800
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	imuCfg, err := cfg.IMUConfig()
	if err != nil {
		t.Fatalf("IMUConfig: %v", err)
	}
	if imuCfg.AccelFSR != imu.AccelFSR8G {
		t.Errorf("AccelFSR = 0x%02x", byte(imuCfg.AccelFSR))
	}
	if imuCfg.GyroFSR != imu.GyroFSR2000DPS {
		t.Errorf("GyroFSR = 0x%02x", byte(imuCfg.GyroFSR))
	}
	if imuCfg.GyroDLPF != imu.DLPF41Hz {
		t.Errorf("GyroDLPF = %d", imuCfg.GyroDLPF)
	}
	if imuCfg.AccelDLPF != imu.DLPFOff {
		t.Errorf("AccelDLPF = %d", imuCfg.AccelDLPF)
	}
	if imuCfg.SampleRate != 50 {
		t.Errorf("SampleRate = %d", imuCfg.SampleRate)
	}
	if imuCfg.EnableMag {
		t.Errorf("EnableMag = true")
	}
	if imuCfg.Orientation != imu.OrientXForward {
		t.Errorf("Orientation = %v", imuCfg.Orientation)
	}
	if imuCfg.CompassTimeConstant != 2.5 {
		t.Errorf("CompassTimeConstant = %g", imuCfg.CompassTimeConstant)
	}
	if imuCfg.CalibrationDir != "/tmp/cal" {
		t.Errorf("CalibrationDir = %q", imuCfg.CalibrationDir)
	}
	if imuCfg.MaxCalibrationAttempts != 5 {
		t.Errorf("MaxCalibrationAttempts = %d", imuCfg.MaxCalibrationAttempts)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", minimalConfig + "NO_SUCH_KEY=1\n", "unknown config key"},
		{"bad line", minimalConfig + "not a key value pair\n", "invalid config line"},
		{"bad accel fsr", minimalConfig + "ACCEL_FSR=3\n", "ACCEL_FSR"},
		{"bad gyro fsr", minimalConfig + "GYRO_FSR=123\n", "GYRO_FSR"},
		{"bad dlpf", minimalConfig + "GYRO_DLPF=9\n", "GYRO_DLPF"},
		{"bad orientation", minimalConfig + "ORIENTATION=UPSIDE_DOWN\n", "ORIENTATION"},
		{"bad priority", minimalConfig + "INTERRUPT_PRIORITY=120\n", "INTERRUPT_PRIORITY"},
		{"missing broker", "I2C_BUS=/dev/i2c-1\nDMP_FIRMWARE_PATH=/x\n", "MQTT_BROKER"},
		{"missing firmware", "I2C_BUS=/dev/i2c-1\nMQTT_BROKER=tcp://x\n", "DMP_FIRMWARE_PATH"},
	}

	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.body))
		if err == nil {
			t.Errorf("%s: Load succeeded", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err = %v, want mention of %q", tc.name, err, tc.want)
		}
	}
}

func TestIMUConfigRejectsBadRate(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"DMP_SAMPLE_RATE=33\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.IMUConfig(); err == nil {
		t.Errorf("IMUConfig accepted rate 33")
	}
}
