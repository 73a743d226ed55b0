package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/transport"
)

// RunCalibrateGyro measures the gyroscope bias with the sensor held still
// and stores the offsets for later runs.
func RunCalibrateGyro() error {
	driver, bus, err := openDriver()
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx := signalContext()

	log.Println("calibrate: keep the sensor completely still")
	if err := driver.CalibrateGyro(ctx); err != nil {
		return err
	}

	log.Println("calibrate: gyro offsets saved")
	return nil
}

// RunCalibrateMag samples the magnetometer while the sensor is rotated
// through all orientations and fits the hard and soft iron correction.
func RunCalibrateMag() error {
	driver, bus, err := openDriver()
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx := signalContext()

	log.Println("calibrate: rotate the sensor slowly through all orientations")
	if err := driver.CalibrateMag(ctx); err != nil {
		return err
	}

	log.Println("calibrate: magnetometer calibration saved")
	return nil
}

func openDriver() (*imu.Driver, transport.Bus, error) {
	cfg := config.Get()
	imuCfg, err := cfg.IMUConfig()
	if err != nil {
		return nil, nil, err
	}

	bus, err := transport.OpenI2C(cfg.I2CBus, imu.MPUAddress)
	if err != nil {
		return nil, nil, err
	}

	driver, err := imu.New(bus, imuCfg)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return driver, bus, nil
}

// signalContext returns a context cancelled on Ctrl+C so a calibration in
// progress can be aborted without leaving the sensor half configured.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return ctx
}
