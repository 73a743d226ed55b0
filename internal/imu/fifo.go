// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"fmt"
	"log"
)

// FIFO packet sizes. A motion-processor packet is quaternion (16) +
// accel (6) + gyro (6); a magnetometer packet is 6 data bytes + status.
const (
	fifoLenNoMag = 28
	fifoLenMag   = 35
	magPktBytes  = 7
)

// classifyFIFO maps a FIFO byte count to the offset of the newest packet
// and which sections it carries. The interrupt handler sometimes runs one
// cycle late, so counts of two or three packets are accepted and older
// data is skipped. Counts that fit no layout indicate lost bytes and the
// caller must reset the FIFO.
func classifyFIFO(count int) (start int, hasDMP, hasMag bool, err error) {
	switch count {
	case 0:
		return 0, false, false, errNoData
	case fifoLenNoMag:
		return 0, true, false, nil
	case fifoLenMag:
		return 0, true, true, nil
	case fifoLenMag + magPktBytes:
		return magPktBytes, true, false, nil
	case fifoLenMag + fifoLenNoMag:
		return fifoLenNoMag, true, false, nil
	case fifoLenMag + fifoLenMag + magPktBytes:
		return fifoLenMag + magPktBytes, true, false, nil
	case 2 * fifoLenNoMag:
		return fifoLenNoMag, true, false, nil
	case 2 * fifoLenMag:
		return fifoLenMag, true, true, nil
	case magPktBytes, 2 * magPktBytes, 3 * magPktBytes:
		// Only magnetometer packets arrived; the motion processor output
		// lagged this cycle. Use the newest one.
		return count - magPktBytes, false, true, nil
	}
	return 0, false, false, fmt.Errorf("%w: %d bytes", ErrFraming, count)
}

// resolveOrder locates the quaternion inside a combined packet. The
// magnetometer section normally precedes the motion-processor section, but
// after a FIFO reset the first packet can arrive in the other order. Both
// candidate positions are probed with the magnitude check.
func resolveOrder(buf []byte, i int) (magAt, dmpAt int, err error) {
	if quatValid(parseQuaternion(buf[i+magPktBytes:])) {
		return i, i + magPktBytes, nil
	}
	if quatValid(parseQuaternion(buf[i:])) {
		return i + fifoLenNoMag, i, nil
	}
	return 0, 0, ErrQuatBounds
}

// parseDMPPacket fills the orientation, accel and gyro fields of s from a
// 28-byte motion-processor packet.
func (d *Driver) parseDMPPacket(b []byte, s *Sample) error {
	fixed := parseQuaternion(b)
	if !quatValid(fixed) {
		return ErrQuatBounds
	}
	s.DMPQuat = quatToFloat(fixed)
	s.DMPTaitBryan = s.DMPQuat.ToTaitBryan()

	for i := 0; i < 3; i++ {
		s.RawAccel[i] = int16(binary.BigEndian.Uint16(b[dmpQuatBytes+2*i:]))
		s.RawGyro[i] = int16(binary.BigEndian.Uint16(b[dmpQuatBytes+6+2*i:]))
		s.Accel[i] = float64(s.RawAccel[i]) * d.accelFactor
		s.Gyro[i] = float64(s.RawGyro[i]) * d.gyroFactor
	}
	return nil
}

// convertMag fills the magnetometer fields of s from the 7 bytes the
// internal I2C master copied out of the AK8963 (little-endian XYZ plus
// status). Factory sensitivity adjustment, the stored calibration and the
// axis remap into the accel/gyro frame are applied here.
func (d *Driver) convertMag(b []byte, s *Sample) bool {
	var adc [3]int16
	for i := 0; i < 3; i++ {
		adc[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	if adc[0] == 0 && adc[1] == 0 && adc[2] == 0 {
		// The compass had no fresh reading this cycle; keep the previous
		// field vector.
		return false
	}

	// The AK8963 axes are rotated relative to the accel/gyro frame:
	// compass X is body Y, compass Y is body X, compass Z points down.
	raw := [3]float64{
		float64(adc[1]) * d.magAdjust[1] * magRawToMicroTesla,
		float64(adc[0]) * d.magAdjust[0] * magRawToMicroTesla,
		-float64(adc[2]) * d.magAdjust[2] * magRawToMicroTesla,
	}
	for i := 0; i < 3; i++ {
		s.Mag[i] = (raw[i] - d.magOffset[i]) * d.magScale[i]
	}
	return true
}

// readDMPFIFO drains the FIFO and produces one Sample. It returns
// errNoData when the FIFO was empty, and ErrFraming or ErrQuatBounds
// (after resetting the FIFO) when the byte count fits no layout or the
// packet failed the quaternion check.
func (d *Driver) readDMPFIFO(s *Sample) error {
	count, err := d.fifoCount()
	if err != nil {
		return err
	}
	start, hasDMP, hasMag, err := classifyFIFO(count)
	if err != nil {
		if err == errNoData {
			return err
		}
		return d.discardCycle(err)
	}

	buf := make([]byte, count)
	if _, err := d.bus.ReadRegs(regFIFORW, buf); err != nil {
		return fmt.Errorf("imu: reading FIFO: %w", err)
	}

	// The quaternion position is always found by probing, not assumed:
	// even at counts the classifier attributes to motion-processor data
	// only, the newest packet can still be a combined one whose mag
	// section shifts the quaternion by seven bytes.
	magAt, dmpAt := start, start
	if hasDMP {
		if d.cfg.EnableMag && count-start >= fifoLenMag {
			magAt, dmpAt, err = resolveOrder(buf, start)
			if err != nil {
				return d.discardCycle(err)
			}
			hasMag = true
		} else if !quatValid(parseQuaternion(buf[start:])) {
			return d.discardCycle(ErrQuatBounds)
		}
	}
	if hasMag {
		if d.convertMag(buf[magAt:], s) {
			d.lastMag = s.Mag
		} else {
			s.Mag = d.lastMag
		}
	} else {
		s.Mag = d.lastMag
	}
	if !hasDMP {
		return errNoData
	}
	if err := d.parseDMPPacket(buf[dmpAt:], s); err != nil {
		return d.discardCycle(err)
	}
	return nil
}

// discardCycle resets the device FIFO after a framing or validity failure
// and hands the failure back to the sampling loop.
func (d *Driver) discardCycle(err error) error {
	if d.cfg.ShowWarnings {
		log.Printf("imu: %v, resetting FIFO", err)
	}
	if rerr := d.resetFIFO(); rerr != nil {
		return rerr
	}
	return err
}

// fifoCount reads the 16-bit FIFO byte counter.
func (d *Driver) fifoCount() (int, error) {
	n, err := d.bus.ReadWord(regFIFOCountH)
	if err != nil {
		return 0, fmt.Errorf("imu: reading FIFO count: %w", err)
	}
	return int(n), nil
}
