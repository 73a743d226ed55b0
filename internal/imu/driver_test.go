// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestInitOneShot(t *testing.T) {
	d, bus := newTestDriver(t, nil)

	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	bus.mu.Lock()
	regs := bus.regs[MPUAddress]
	ak := bus.regs[AKAddress]
	if regs[regSmplrtDiv] != 0 {
		t.Errorf("SMPLRT_DIV = %d, want 0 for one-shot mode", regs[regSmplrtDiv])
	}
	if regs[regGyroConfig] != byte(GyroFSR1000DPS) {
		t.Errorf("GYRO_CONFIG = 0x%02x", regs[regGyroConfig])
	}
	if regs[regAccelConfig] != byte(AccelFSR4G) {
		t.Errorf("ACCEL_CONFIG = 0x%02x", regs[regAccelConfig])
	}
	if regs[regConfig] != byte(DLPF92Hz) {
		t.Errorf("CONFIG = 0x%02x", regs[regConfig])
	}
	if regs[regAccelConfig2] != bitFIFOSize1024|byte(DLPF92Hz) {
		t.Errorf("ACCEL_CONFIG2 = 0x%02x", regs[regAccelConfig2])
	}
	// Magnetometer left in 16-bit continuous mode behind bypass.
	if ak[akRegCNTL] != akModeCont16 {
		t.Errorf("AK CNTL = 0x%02x, want 0x%02x", ak[akRegCNTL], akModeCont16)
	}
	if regs[regIntPinCfg]&bitBypassEn == 0 {
		t.Errorf("bypass not left on after Init")
	}
	bus.mu.Unlock()
}

func TestInitDLPFOffQuirks(t *testing.T) {
	d, bus := newTestDriver(t, func(c *Config) {
		c.GyroDLPF = DLPFOff
		c.AccelDLPF = DLPFOff
		c.EnableMag = false
	})

	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	regs := bus.regs[MPUAddress]
	// Filter-off still writes a defined code to each register.
	if regs[regConfig] != 1 {
		t.Errorf("CONFIG = 0x%02x, want 1 with gyro filter off", regs[regConfig])
	}
	if regs[regAccelConfig2] != bitFIFOSize1024|7 {
		t.Errorf("ACCEL_CONFIG2 = 0x%02x, want 0x%02x", regs[regAccelConfig2], bitFIFOSize1024|7)
	}
}

func TestInitBadDeviceID(t *testing.T) {
	d, bus := newTestDriver(t, nil)
	bus.regs[MPUAddress][regWhoAmI] = 0x70

	if err := d.Init(); !errors.Is(err, ErrBadDeviceID) {
		t.Fatalf("err = %v, want ErrBadDeviceID", err)
	}
}

func TestReadAccelGyroScaling(t *testing.T) {
	d, bus := newTestDriver(t, nil)

	var accel [6]byte
	binary.BigEndian.PutUint16(accel[0:], uint16(16384)) // 2 g at 4 g range
	binary.BigEndian.PutUint16(accel[2:], 0xC000) // -16384
	bus.SetAddress(MPUAddress)
	bus.WriteRegs(regAccelXoutH, accel[:])

	var gyro [6]byte
	binary.BigEndian.PutUint16(gyro[0:], uint16(32767))
	bus.WriteRegs(regGyroXoutH, gyro[:])

	var s Sample
	if err := d.ReadAccel(&s); err != nil {
		t.Fatalf("ReadAccel: %v", err)
	}
	if err := d.ReadGyro(&s); err != nil {
		t.Fatalf("ReadGyro: %v", err)
	}

	if math.Abs(s.Accel[0]-2*gravity) > 1e-6 {
		t.Errorf("Accel[0] = %g, want %g", s.Accel[0], 2*gravity)
	}
	if math.Abs(s.Accel[1]+2*gravity) > 1e-6 {
		t.Errorf("Accel[1] = %g, want %g", s.Accel[1], -2*gravity)
	}
	if s.Accel[2] != 0 {
		t.Errorf("Accel[2] = %g, want 0", s.Accel[2])
	}
	// Full-scale reading at 1000 dps.
	if math.Abs(s.Gyro[0]-1000) > 0.1 {
		t.Errorf("Gyro[0] = %g, want ~1000", s.Gyro[0])
	}
}

func TestReadMagNoFreshData(t *testing.T) {
	d, bus := newTestDriver(t, nil)
	bus.regs[AKAddress][akRegST1] = 0x00

	s := Sample{Mag: [3]float64{1, 2, 3}}
	if err := d.ReadMag(&s); err != nil {
		t.Fatalf("ReadMag: %v", err)
	}
	// No data ready: the previous values stay put.
	if s.Mag != ([3]float64{1, 2, 3}) {
		t.Errorf("Mag = %v, want unchanged", s.Mag)
	}
}

func TestReadMagSaturated(t *testing.T) {
	d, bus := newTestDriver(t, nil)
	bus.regs[AKAddress][akRegST1] = 0x01
	bus.regs[AKAddress][akRegST2] = 0x08

	var s Sample
	if err := d.ReadMag(&s); err == nil {
		t.Errorf("saturated measurement accepted")
	}
}

func TestReadMagDisabled(t *testing.T) {
	d, _ := newTestDriver(t, func(c *Config) {
		c.EnableMag = false
	})
	var s Sample
	if err := d.ReadMag(&s); err == nil {
		t.Errorf("ReadMag succeeded with magnetometer disabled")
	}
}

func TestReadTemp(t *testing.T) {
	d, bus := newTestDriver(t, nil)
	// 333.87 LSB/°C around 21 °C: zero ADC reads as the offset.
	var s Sample
	if err := d.ReadTemp(&s); err != nil {
		t.Fatalf("ReadTemp: %v", err)
	}
	if math.Abs(s.TempC-tempOffsetC) > 1e-9 {
		t.Errorf("TempC = %g, want %g", s.TempC, tempOffsetC)
	}

	var raw [2]byte
	binary.BigEndian.PutUint16(raw[:], 0xF2F5) // -3339
	bus.WriteRegs(regTempOutH, raw[:])
	if err := d.ReadTemp(&s); err != nil {
		t.Fatalf("ReadTemp: %v", err)
	}
	if math.Abs(s.TempC-(tempOffsetC-10.001)) > 0.01 {
		t.Errorf("TempC = %g, want ~%g", s.TempC, tempOffsetC-10.0)
	}
}

func TestDumpRegisters(t *testing.T) {
	d, bus := newTestDriver(t, nil)
	bus.regs[MPUAddress][regGyroConfig] = byte(GyroFSR2000DPS)

	values, err := d.DumpRegisters(MPUAddress, MPURegisters())
	if err != nil {
		t.Fatalf("DumpRegisters: %v", err)
	}
	found := false
	for _, v := range values {
		if v.Name == "GYRO_CONFIG" {
			found = true
			if v.Value != byte(GyroFSR2000DPS) {
				t.Errorf("GYRO_CONFIG value = 0x%02x", v.Value)
			}
		}
	}
	if !found {
		t.Errorf("GYRO_CONFIG missing from register dump")
	}

	// WHO_AM_I should read back the mock's identity.
	for _, v := range values {
		if v.Name == "WHO_AM_I" && v.Value != whoAmIValue {
			t.Errorf("WHO_AM_I = 0x%02x, want 0x%02x", v.Value, whoAmIValue)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 7 // not a divisor of 200
	if _, err := New(newMockBus(), cfg); err == nil {
		t.Errorf("New accepted rate 7")
	}

	cfg = DefaultConfig()
	cfg.CompassTimeConstant = 0.01
	if _, err := New(newMockBus(), cfg); err == nil {
		t.Errorf("New accepted time constant 0.01")
	}

	// An axis code of 3 in the packed rotation would run past the opcode
	// tables inside the firmware setup.
	cfg = DefaultConfig()
	cfg.Orientation = Orientation(27)
	if _, err := New(newMockBus(), cfg); err == nil {
		t.Errorf("New accepted orientation 27")
	}
}

func TestWireMagSlave(t *testing.T) {
	d, bus := newTestDriver(t, nil)

	if err := d.wireMagSlave(); err != nil {
		t.Fatalf("wireMagSlave: %v", err)
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	regs := bus.regs[MPUAddress]
	if regs[regI2CMstCtrl] != bitMultMstEn|i2cMstClk400kHz {
		t.Errorf("I2C_MST_CTRL = 0x%02x", regs[regI2CMstCtrl])
	}
	if regs[regI2CSlv0Addr] != bitI2CRead|AKAddress {
		t.Errorf("I2C_SLV0_ADDR = 0x%02x", regs[regI2CSlv0Addr])
	}
	if regs[regI2CSlv0Ctrl] != bitI2CSlvEn|magPktBytes {
		t.Errorf("I2C_SLV0_CTRL = 0x%02x", regs[regI2CSlv0Ctrl])
	}
}
