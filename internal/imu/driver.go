// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu drives the MPU-9250 nine-axis sensor over I2C, either in
// one-shot register reads or with the on-chip motion processor producing
// fused orientation packets through the FIFO at a fixed rate.
package imu

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/motion_engine/internal/interrupt"
	"github.com/relabs-tech/motion_engine/internal/transport"
)

// Handler is called from the sampling goroutine after each successful
// cycle. It must not block; the next interrupt arrives within one sample
// period.
type Handler func(*Sample)

// Driver owns the sensor state. All methods are safe for use from a
// single goroutine; the sampling loop coordinates its own bus access.
type Driver struct {
	bus  transport.Bus
	cfg  Config
	edge interrupt.EdgeSource

	accelFactor float64
	gyroFactor  float64

	// Factory sensitivity adjustment from the AK8963 fuse ROM and the
	// stored hard/soft-iron calibration.
	magAdjust [3]float64
	magOffset [3]float64
	magScale  [3]float64
	lastMag   [3]float64

	dmpEnabled bool

	fusion fusionState

	handlerMu sync.Mutex
	handler   Handler

	loop loopState
}

// New prepares a driver for the given bus. No hardware access happens
// until Init or InitDMP.
func New(bus transport.Bus, cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		bus:         bus,
		cfg:         cfg,
		accelFactor: accelToMS2(cfg.AccelFSR),
		gyroFactor:  gyroToDegs(cfg.GyroFSR),
		magAdjust:   [3]float64{1, 1, 1},
		magScale:    [3]float64{1, 1, 1},
	}
	return d, nil
}

// Init brings the sensor up for one-shot reads: full-rate internal
// sampling, no FIFO, no motion processor. The magnetometer is left in
// bypass mode so it can be read directly.
func (d *Driver) Init() error {
	if d.bus.InUse() {
		log.Printf("imu: warning: bus claimed by another routine, continuing anyway")
	}
	d.bus.Claim()
	defer d.bus.Release()

	d.bus.SetAddress(MPUAddress)
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.checkWhoAmI(); err != nil {
		return err
	}
	if err := d.loadGyroOffsets(); err != nil {
		return fmt.Errorf("imu: loading gyro offsets: %w", err)
	}

	// Divider 0: sample internally at the full 1 kHz.
	if err := d.bus.WriteReg(regSmplrtDiv, 0x00); err != nil {
		return fmt.Errorf("imu: setting sample rate: %w", err)
	}
	if err := d.applyRanges(d.cfg.AccelFSR, d.cfg.GyroFSR); err != nil {
		return err
	}
	if err := d.applyDLPF(); err != nil {
		return err
	}
	if d.cfg.EnableMag {
		if err := d.initMagnetometer(); err != nil {
			return err
		}
	} else if err := d.powerDownMagnetometer(); err != nil {
		return err
	}
	return nil
}

// reset restores the power-on register state. Each power register write is
// retried once; the chip occasionally NAKs the first transfer right after
// a reset.
func (d *Driver) reset() error {
	write := func(val byte) error {
		if err := d.bus.WriteReg(regPwrMgmt1, val); err != nil {
			time.Sleep(10 * time.Millisecond)
			if err = d.bus.WriteReg(regPwrMgmt1, val); err != nil {
				return fmt.Errorf("imu: power management write failed: %w", err)
			}
		}
		return nil
	}
	if err := write(bitHReset); err != nil {
		return err
	}
	if err := write(0); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (d *Driver) checkWhoAmI() error {
	id, err := d.bus.ReadReg(regWhoAmI)
	if err != nil {
		return fmt.Errorf("imu: reading device ID: %w", err)
	}
	if id != whoAmIValue {
		return fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrBadDeviceID, id, whoAmIValue)
	}
	return nil
}

func (d *Driver) applyRanges(accel AccelFSR, gyro GyroFSR) error {
	if err := d.bus.WriteReg(regGyroConfig, byte(gyro)); err != nil {
		return fmt.Errorf("imu: setting gyro range: %w", err)
	}
	if err := d.bus.WriteReg(regAccelConfig, byte(accel)); err != nil {
		return fmt.Errorf("imu: setting accel range: %w", err)
	}
	return nil
}

func (d *Driver) applyDLPF() error {
	g := byte(d.cfg.GyroDLPF)
	if d.cfg.GyroDLPF == DLPFOff {
		g = 1
	}
	if err := d.bus.WriteReg(regConfig, g); err != nil {
		return fmt.Errorf("imu: setting gyro filter: %w", err)
	}
	a := byte(d.cfg.AccelDLPF)
	if d.cfg.AccelDLPF == DLPFOff {
		a = 7
	}
	if err := d.bus.WriteReg(regAccelConfig2, bitFIFOSize1024|a); err != nil {
		return fmt.Errorf("imu: setting accel filter: %w", err)
	}
	return nil
}

// setBypass routes the auxiliary I2C pins either to the host (bypass on,
// for direct magnetometer access) or to the internal master.
func (d *Driver) setBypass(on bool) error {
	var userCtrl byte
	if d.dmpEnabled {
		userCtrl |= bitFIFOEnable
	}
	if !on {
		userCtrl |= bitI2CMstEn
	}
	if err := d.bus.WriteReg(regUserCtrl, userCtrl); err != nil {
		return fmt.Errorf("imu: configuring I2C master: %w", err)
	}
	time.Sleep(3 * time.Millisecond)

	pinCfg := byte(bitActiveLow)
	if on {
		pinCfg |= bitBypassEn
	}
	if err := d.bus.WriteReg(regIntPinCfg, pinCfg); err != nil {
		return fmt.Errorf("imu: configuring interrupt pin: %w", err)
	}
	return nil
}

// initMagnetometer powers up the AK8963, reads the factory sensitivity
// values out of its fuse ROM and puts it in 16-bit 100 Hz continuous
// mode. Bypass is left on so one-shot reads keep working.
func (d *Driver) initMagnetometer() error {
	d.bus.SetAddress(MPUAddress)
	if err := d.setBypass(true); err != nil {
		return err
	}

	d.bus.SetAddress(AKAddress)
	if err := d.bus.WriteReg(akRegCNTL, akModePowerDown); err != nil {
		return fmt.Errorf("imu: powering down magnetometer: %w", err)
	}
	time.Sleep(time.Millisecond)
	if err := d.bus.WriteReg(akRegCNTL, akModeFuseROM); err != nil {
		return fmt.Errorf("imu: entering fuse ROM mode: %w", err)
	}
	time.Sleep(time.Millisecond)

	var asa [3]byte
	if _, err := d.bus.ReadRegs(akRegASAX, asa[:]); err != nil {
		d.bus.SetAddress(MPUAddress)
		d.setBypass(false)
		return fmt.Errorf("imu: reading sensitivity adjustment: %w", err)
	}
	for i, v := range asa {
		d.magAdjust[i] = float64(int(v)-128)/256.0 + 1.0
	}

	if err := d.bus.WriteReg(akRegCNTL, akModePowerDown); err != nil {
		return fmt.Errorf("imu: powering down magnetometer: %w", err)
	}
	time.Sleep(100 * time.Microsecond)
	if err := d.bus.WriteReg(akRegCNTL, akModeCont16); err != nil {
		return fmt.Errorf("imu: starting continuous sampling: %w", err)
	}
	time.Sleep(100 * time.Microsecond)

	d.bus.SetAddress(MPUAddress)
	if err := d.loadMagCalibration(); err != nil {
		log.Printf("imu: %v, run the magnetometer calibration", err)
	}
	return nil
}

func (d *Driver) powerDownMagnetometer() error {
	d.bus.SetAddress(MPUAddress)
	if err := d.setBypass(true); err != nil {
		return err
	}
	d.bus.SetAddress(AKAddress)
	if err := d.bus.WriteReg(akRegCNTL, akModePowerDown); err != nil {
		return fmt.Errorf("imu: powering down magnetometer: %w", err)
	}
	d.bus.SetAddress(MPUAddress)
	return d.setBypass(false)
}

// ReadAccel reads the latest accelerometer registers. The sensor
// self-samples at 1 kHz regardless of reads.
func (d *Driver) ReadAccel(s *Sample) error {
	d.bus.SetAddress(MPUAddress)
	var raw [6]byte
	if _, err := d.bus.ReadRegs(regAccelXoutH, raw[:]); err != nil {
		return fmt.Errorf("imu: reading accelerometer: %w", err)
	}
	for i := 0; i < 3; i++ {
		s.RawAccel[i] = int16(uint16(raw[2*i])<<8 | uint16(raw[2*i+1]))
		s.Accel[i] = float64(s.RawAccel[i]) * d.accelFactor
	}
	return nil
}

// ReadGyro reads the latest gyroscope registers.
func (d *Driver) ReadGyro(s *Sample) error {
	d.bus.SetAddress(MPUAddress)
	var raw [6]byte
	if _, err := d.bus.ReadRegs(regGyroXoutH, raw[:]); err != nil {
		return fmt.Errorf("imu: reading gyroscope: %w", err)
	}
	for i := 0; i < 3; i++ {
		s.RawGyro[i] = int16(uint16(raw[2*i])<<8 | uint16(raw[2*i+1]))
		s.Gyro[i] = float64(s.RawGyro[i]) * d.gyroFactor
	}
	return nil
}

// ReadMag reads the magnetometer through bypass mode. The compass only
// updates at 100 Hz; when no fresh reading is available the Mag field is
// left alone and no error is returned.
func (d *Driver) ReadMag(s *Sample) error {
	if !d.cfg.EnableMag {
		return fmt.Errorf("imu: magnetometer disabled in configuration")
	}
	d.bus.SetAddress(AKAddress)
	defer d.bus.SetAddress(MPUAddress)

	st1, err := d.bus.ReadReg(akRegST1)
	if err != nil {
		return fmt.Errorf("imu: reading magnetometer status (bypass off?): %w", err)
	}
	if st1&0x01 == 0 {
		return nil
	}
	var raw [7]byte
	if _, err := d.bus.ReadRegs(akRegXoutL, raw[:]); err != nil {
		return fmt.Errorf("imu: reading magnetometer: %w", err)
	}
	// Overflowed measurements are useless, a strong local field clipped
	// the sensor.
	if raw[6]&0x08 != 0 {
		return fmt.Errorf("imu: magnetometer saturated")
	}
	d.convertMag(raw[:], s)
	return nil
}

// ReadTemp reads the die temperature in °C.
func (d *Driver) ReadTemp(s *Sample) error {
	d.bus.SetAddress(MPUAddress)
	adc, err := d.bus.ReadWord(regTempOutH)
	if err != nil {
		return fmt.Errorf("imu: reading temperature: %w", err)
	}
	s.TempC = float64(int16(adc))/tempSensitivity + tempOffsetC
	return nil
}

// InitDMP loads the motion-processor firmware, configures the fixed
// feature set and starts the sampling goroutine driven by the interrupt
// line. firmware is the raw program image.
func (d *Driver) InitDMP(firmware []byte, edge interrupt.EdgeSource) error {
	if d.bus.InUse() {
		log.Printf("imu: warning: bus claimed by another routine, continuing anyway")
	}
	d.bus.Claim()
	defer d.bus.Release()

	d.edge = edge
	d.bus.SetAddress(MPUAddress)
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.checkWhoAmI(); err != nil {
		return err
	}
	if err := d.loadGyroOffsets(); err != nil {
		return fmt.Errorf("imu: loading gyro offsets: %w", err)
	}
	d.dmpEnabled = true
	d.fusion.reset()

	// The motion processor consumes samples at a fixed 200 Hz and divides
	// down to the configured output rate itself.
	if err := d.bus.WriteReg(regSmplrtDiv, byte(1000/internalRate-1)); err != nil {
		return fmt.Errorf("imu: setting sample rate: %w", err)
	}

	if d.cfg.EnableMag {
		if err := d.initMagnetometer(); err != nil {
			return err
		}
	} else if err := d.powerDownMagnetometer(); err != nil {
		return err
	}

	// The firmware assumes the widest gyro range and 2 g accel; anything
	// else comes out of the quaternion mis-scaled. User-facing raw data is
	// still converted with these ranges.
	if err := d.applyRanges(AccelFSR2G, GyroFSR2000DPS); err != nil {
		return err
	}
	d.accelFactor = accelToMS2(AccelFSR2G)
	d.gyroFactor = gyroToDegs(GyroFSR2000DPS)
	if err := d.applyDLPF(); err != nil {
		return err
	}

	if err := d.loadFirmware(firmware); err != nil {
		return err
	}
	if err := d.setDMPRate(d.cfg.SampleRate); err != nil {
		return err
	}
	if err := d.setOrientation(uint16(d.cfg.Orientation)); err != nil {
		return err
	}
	if err := d.enableFeatures(); err != nil {
		return err
	}
	if err := d.setContinuousInterrupts(); err != nil {
		return err
	}
	if err := d.startDMP(); err != nil {
		return err
	}

	if d.cfg.EnableMag {
		if err := d.wireMagSlave(); err != nil {
			return err
		}
	}

	d.startLoop()
	return nil
}

// startDMP switches the interrupt source to the motion processor and
// clears the FIFO.
func (d *Driver) startDMP() error {
	if err := d.setIntEnable(false); err != nil {
		return err
	}
	if err := d.setBypass(false); err != nil {
		return err
	}
	if err := d.bus.WriteReg(regFIFOEn, 0); err != nil {
		return fmt.Errorf("imu: disabling FIFO sources: %w", err)
	}
	if err := d.setIntEnable(true); err != nil {
		return err
	}
	return d.resetFIFO()
}

func (d *Driver) setIntEnable(on bool) error {
	var v byte
	if on {
		v = bitDMPIntEn
	}
	if err := d.bus.WriteReg(regIntEnable, v); err != nil {
		return fmt.Errorf("imu: configuring interrupts: %w", err)
	}
	if err := d.bus.WriteReg(regFIFOEn, 0); err != nil {
		return fmt.Errorf("imu: disabling FIFO sources: %w", err)
	}
	return nil
}

// wireMagSlave programs the internal I2C master to copy 7 bytes from the
// AK8963 into the FIFO alongside each motion-processor packet.
func (d *Driver) wireMagSlave() error {
	steps := []struct {
		reg, val byte
	}{
		{regFIFOEn, bitFIFOSlv0En},
		{regI2CMstCtrl, bitMultMstEn | i2cMstClk400kHz},
		{regI2CSlv0Addr, bitI2CRead | AKAddress},
		{regI2CSlv0Reg, akRegXoutL},
		{regI2CSlv0Ctrl, bitI2CSlvEn | magPktBytes},
	}
	for _, s := range steps {
		if err := d.bus.WriteReg(s.reg, s.val); err != nil {
			return fmt.Errorf("imu: wiring magnetometer slave: %w", err)
		}
	}
	return nil
}

// resetFIFO stops the interrupt, resets the FIFO and motion processor and
// turns them back on. Called at startup and whenever framing is lost.
func (d *Driver) resetFIFO() error {
	if err := d.bus.WriteReg(regIntEnable, 0); err != nil {
		return fmt.Errorf("imu: resetting FIFO: %w", err)
	}
	if err := d.bus.WriteReg(regFIFOEn, 0); err != nil {
		return fmt.Errorf("imu: resetting FIFO: %w", err)
	}
	if err := d.bus.WriteReg(regUserCtrl, bitFIFOReset|bitDMPReset); err != nil {
		return fmt.Errorf("imu: resetting FIFO: %w", err)
	}
	time.Sleep(time.Millisecond)

	userCtrl := byte(bitDMPEnable | bitFIFOEnable)
	if d.cfg.EnableMag {
		userCtrl |= bitI2CMstEn
	}
	if err := d.bus.WriteReg(regUserCtrl, userCtrl); err != nil {
		return fmt.Errorf("imu: resetting FIFO: %w", err)
	}
	fifoEn := byte(0)
	if d.cfg.EnableMag {
		fifoEn = bitFIFOSlv0En
	}
	if err := d.bus.WriteReg(regFIFOEn, fifoEn); err != nil {
		return fmt.Errorf("imu: resetting FIFO: %w", err)
	}
	intEn := byte(0)
	if d.dmpEnabled {
		intEn = bitDMPIntEn
	}
	if err := d.bus.WriteReg(regIntEnable, intEn); err != nil {
		return fmt.Errorf("imu: resetting FIFO: %w", err)
	}
	return nil
}

// SetHandler installs the function called after each successful sampling
// cycle. Pass nil to stop callbacks without stopping sampling.
func (d *Driver) SetHandler(h Handler) {
	d.handlerMu.Lock()
	d.handler = h
	d.handlerMu.Unlock()
}

// PowerOff stops the sampling goroutine, resets the chip and puts it to
// sleep. Safe to call more than once.
func (d *Driver) PowerOff() error {
	d.stopLoop()

	d.bus.SetAddress(MPUAddress)
	write := func(val byte) error {
		if err := d.bus.WriteReg(regPwrMgmt1, val); err != nil {
			time.Sleep(time.Millisecond)
			if err = d.bus.WriteReg(regPwrMgmt1, val); err != nil {
				return fmt.Errorf("imu: power-off write failed: %w", err)
			}
		}
		return nil
	}
	if err := write(bitHReset); err != nil {
		return err
	}
	if err := write(bitSleep); err != nil {
		return err
	}
	return nil
}
