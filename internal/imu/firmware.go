// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bytes"
	"fmt"
)

// Motion-processor memory layout. The memory is paged in 256-byte banks
// selected through BANK_SEL; a single transfer must not cross a bank edge.
const (
	dmpBankSize   = 256
	dmpMemorySize = 4096
	dmpLoadChunk  = 16
	dmpStartAddr  = 0x0400

	dmpMaxRate = internalRate
)

// Firmware data addresses, from the InvenSense motion driver.
const (
	memFCFG1 = 1062
	memFCFG2 = 1066
	memFCFG7 = 1073
	memFCFG3 = 1088

	memD0_22  = 534
	memD0_104 = 104

	memCFG6             = 2753
	memCFG8             = 2718
	memCFG15            = 2727
	memCFG20            = 2224
	memCFG27            = 2742
	memCFGLPQuat        = 2712
	memCFGFIFOOnEvent   = 2690
	memCFGMotionBias    = 1208
	memCFGAndroidOrient = 1853
	memCFGGyroRawData   = 2722

	gyroScaleFactor = 46850825
)

// writeMem writes to motion-processor memory at addr (bank << 8 | offset).
func (d *Driver) writeMem(addr uint16, data []byte) error {
	if int(addr&0xFF)+len(data) > dmpBankSize {
		return fmt.Errorf("imu: memory write at 0x%04x crosses bank boundary", addr)
	}
	if err := d.bus.WriteRegs(regBankSel, []byte{byte(addr >> 8), byte(addr)}); err != nil {
		return fmt.Errorf("imu: selecting memory bank: %w", err)
	}
	if err := d.bus.WriteRegs(regMemRW, data); err != nil {
		return fmt.Errorf("imu: writing memory at 0x%04x: %w", addr, err)
	}
	return nil
}

// readMem reads from motion-processor memory at addr.
func (d *Driver) readMem(addr uint16, data []byte) error {
	if int(addr&0xFF)+len(data) > dmpBankSize {
		return fmt.Errorf("imu: memory read at 0x%04x crosses bank boundary", addr)
	}
	if err := d.bus.WriteRegs(regBankSel, []byte{byte(addr >> 8), byte(addr)}); err != nil {
		return fmt.Errorf("imu: selecting memory bank: %w", err)
	}
	if _, err := d.bus.ReadRegs(regMemRW, data); err != nil {
		return fmt.Errorf("imu: reading memory at 0x%04x: %w", addr, err)
	}
	return nil
}

// loadFirmware uploads the motion-processor program in 16-byte chunks,
// reading each chunk back to catch bus corruption, then points the program
// counter at the entry address.
func (d *Driver) loadFirmware(fw []byte) error {
	if len(fw) == 0 || len(fw) > dmpMemorySize {
		return fmt.Errorf("imu: firmware size %d invalid", len(fw))
	}
	verify := make([]byte, dmpLoadChunk)
	for off := 0; off < len(fw); off += dmpLoadChunk {
		end := off + dmpLoadChunk
		if end > len(fw) {
			end = len(fw)
		}
		chunk := fw[off:end]
		if err := d.writeMem(uint16(off), chunk); err != nil {
			return err
		}
		if err := d.readMem(uint16(off), verify[:len(chunk)]); err != nil {
			return err
		}
		if !bytes.Equal(chunk, verify[:len(chunk)]) {
			return fmt.Errorf("%w: chunk at 0x%04x", ErrFirmwareCorrupt, off)
		}
	}
	if err := d.bus.WriteRegs(regPrgmStartH, []byte{dmpStartAddr >> 8, dmpStartAddr & 0xFF}); err != nil {
		return fmt.Errorf("imu: setting program start address: %w", err)
	}
	return nil
}

// setOrientation pushes the mounting rotation to the firmware as axis and
// sign remap opcodes. orient packs a signed permutation matrix, three bits
// per row.
func (d *Driver) setOrientation(orient uint16) error {
	gyroAxes := [3]byte{0x4C, 0xCD, 0x6C}
	accelAxes := [3]byte{0x0C, 0xC9, 0x2C}
	gyroSign := [3]byte{0x36, 0x56, 0x76}
	accelSign := [3]byte{0x26, 0x46, 0x66}

	var gyro, accel [3]byte
	for i, shift := range []uint{0, 3, 6} {
		axis := (orient >> shift) & 3
		gyro[i] = gyroAxes[axis]
		accel[i] = accelAxes[axis]
	}
	if err := d.writeMem(memFCFG1, gyro[:]); err != nil {
		return err
	}
	if err := d.writeMem(memFCFG2, accel[:]); err != nil {
		return err
	}

	gyro, accel = gyroSign, accelSign
	for i, bit := range []uint16{4, 0x20, 0x100} {
		if orient&bit != 0 {
			gyro[i] |= 1
			accel[i] |= 1
		}
	}
	if err := d.writeMem(memFCFG3, gyro[:]); err != nil {
		return err
	}
	return d.writeMem(memFCFG7, accel[:])
}

// setDMPRate programs the firmware output divider. The firmware runs at a
// fixed 200 Hz and decimates down to the configured rate.
func (d *Driver) setDMPRate(rate int) error {
	regsEnd := []byte{0xFE, 0xF2, 0xAB, 0xC4, 0xAA, 0xF1, 0xDF, 0xDF, 0xBB, 0xAF, 0xDF, 0xDF}
	if rate > dmpMaxRate {
		return fmt.Errorf("imu: rate %d above firmware maximum %d", rate, dmpMaxRate)
	}
	div := uint16(dmpMaxRate/rate - 1)
	if err := d.writeMem(memD0_22, []byte{byte(div >> 8), byte(div)}); err != nil {
		return err
	}
	return d.writeMem(memCFG6, regsEnd)
}

// enableFeatures configures the fixed feature set: 6-axis quaternion plus
// raw accel and gyro in every FIFO packet. Gestures, tap detection and the
// firmware's own gyro calibration stay off; bias handling is done on the
// host where it can be persisted.
func (d *Driver) enableFeatures() error {
	gsf := uint32(gyroScaleFactor)
	sf := []byte{byte(gsf >> 24), byte(gsf >> 16), byte(gsf >> 8), byte(gsf)}
	if err := d.writeMem(memD0_104, sf); err != nil {
		return err
	}

	// Raw accel and gyro into the FIFO.
	send := []byte{0xA3, 0xC0, 0xC8, 0xC2, 0xC4, 0xCC, 0xC6, 0xA3, 0xA3, 0xA3}
	if err := d.writeMem(memCFG15, send); err != nil {
		return err
	}
	// No gesture section in the packet.
	if err := d.writeMem(memCFG27, []byte{0xD8}); err != nil {
		return err
	}
	// Firmware gyro calibration off.
	if err := d.writeMem(memCFGMotionBias, []byte{0xB8, 0xAA, 0xAA, 0xAA, 0xB0, 0x88, 0xC3, 0xC5, 0xC7}); err != nil {
		return err
	}
	// Raw (not firmware-calibrated) gyro.
	if err := d.writeMem(memCFGGyroRawData, []byte{0xC0, 0x80, 0xC2, 0x90}); err != nil {
		return err
	}
	// Tap and screen-orientation gestures off.
	if err := d.writeMem(memCFG20, []byte{0xD8}); err != nil {
		return err
	}
	if err := d.writeMem(memCFGAndroidOrient, []byte{0xD8}); err != nil {
		return err
	}
	// Gyro-only quaternion off, 6-axis quaternion on.
	if err := d.writeMem(memCFGLPQuat, []byte{0x8B, 0x8B, 0x8B, 0x8B}); err != nil {
		return err
	}
	if err := d.writeMem(memCFG8, []byte{0x20, 0x28, 0x30, 0x38}); err != nil {
		return err
	}
	return d.resetFIFO()
}

// setContinuousInterrupts makes the firmware raise an interrupt on every
// sample instead of only on gesture events.
func (d *Driver) setContinuousInterrupts() error {
	regs := []byte{0xD8, 0xB1, 0xB9, 0xF3, 0x8B, 0xA3, 0x91, 0xB6, 0x09, 0xB4, 0xD9}
	return d.writeMem(memCFGFIFOOnEvent, regs)
}
