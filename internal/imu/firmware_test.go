// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteMemBankBoundary(t *testing.T) {
	d, _ := newTestDriver(t, nil)

	cases := []struct {
		addr uint16
		n    int
		ok   bool
	}{
		{addr: 0x0000, n: 16, ok: true},
		{addr: 0x00F0, n: 16, ok: true},  // ends exactly on the bank edge
		{addr: 0x00F1, n: 16, ok: false}, // crosses into the next bank
		{addr: 0x01FF, n: 2, ok: false},
		{addr: 0x0100, n: 256, ok: true},
	}

	for _, tc := range cases {
		err := d.writeMem(tc.addr, make([]byte, tc.n))
		if tc.ok && err != nil {
			t.Errorf("writeMem(0x%04x, %d) = %v, want nil", tc.addr, tc.n, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("writeMem(0x%04x, %d) succeeded, want bank boundary error", tc.addr, tc.n)
		}
		if err = d.readMem(tc.addr, make([]byte, tc.n)); (err == nil) != tc.ok {
			t.Errorf("readMem(0x%04x, %d) error mismatch: %v", tc.addr, tc.n, err)
		}
	}
}

func TestLoadFirmware(t *testing.T) {
	d, bus := newTestDriver(t, nil)

	// A payload longer than one chunk with a non-chunk-aligned tail.
	fw := make([]byte, 3*dmpLoadChunk+5)
	for i := range fw {
		fw[i] = byte(i * 7)
	}

	if err := d.loadFirmware(fw); err != nil {
		t.Fatalf("loadFirmware: %v", err)
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if !bytes.Equal(bus.mem[:len(fw)], fw) {
		t.Errorf("memory does not match firmware image")
	}
	// Program counter pointed at the entry address.
	if bus.regs[MPUAddress][regPrgmStartH] != dmpStartAddr>>8 ||
		bus.regs[MPUAddress][regPrgmStartH+1] != dmpStartAddr&0xFF {
		t.Errorf("program start = 0x%02x%02x, want 0x%04x",
			bus.regs[MPUAddress][regPrgmStartH], bus.regs[MPUAddress][regPrgmStartH+1], dmpStartAddr)
	}
}

func TestLoadFirmwareVerifyFailure(t *testing.T) {
	d, bus := newTestDriver(t, nil)
	bus.corruptMemReads = true

	err := d.loadFirmware(make([]byte, dmpLoadChunk))
	if !errors.Is(err, ErrFirmwareCorrupt) {
		t.Fatalf("err = %v, want ErrFirmwareCorrupt", err)
	}
	if !strings.Contains(err.Error(), "0x0000") {
		t.Errorf("error does not name the failed chunk: %v", err)
	}
}

func TestLoadFirmwareSizeLimits(t *testing.T) {
	d, _ := newTestDriver(t, nil)

	if err := d.loadFirmware(nil); err == nil {
		t.Errorf("empty firmware accepted")
	}
	if err := d.loadFirmware(make([]byte, dmpMemorySize+1)); err == nil {
		t.Errorf("oversized firmware accepted")
	}
}

func TestSetDMPRate(t *testing.T) {
	d, bus := newTestDriver(t, nil)

	if err := d.setDMPRate(50); err != nil {
		t.Fatalf("setDMPRate: %v", err)
	}
	// 200/50 - 1 = 3, big-endian at the divider address.
	bus.mu.Lock()
	div := uint16(bus.mem[memD0_22])<<8 | uint16(bus.mem[memD0_22+1])
	bus.mu.Unlock()
	if div != 3 {
		t.Errorf("divider = %d, want 3", div)
	}

	if err := d.setDMPRate(internalRate + 1); err == nil {
		t.Errorf("rate above firmware maximum accepted")
	}
}

func TestSetOrientationOpcodes(t *testing.T) {
	d, bus := newTestDriver(t, nil)

	// Z up is the identity mounting: axis order 0,1,2 and no sign flips.
	if err := d.setOrientation(uint16(OrientZUp)); err != nil {
		t.Fatalf("setOrientation: %v", err)
	}
	bus.mu.Lock()
	gyroAxes := [3]byte{bus.mem[memFCFG1], bus.mem[memFCFG1+1], bus.mem[memFCFG1+2]}
	gyroSign := [3]byte{bus.mem[memFCFG3], bus.mem[memFCFG3+1], bus.mem[memFCFG3+2]}
	bus.mu.Unlock()
	if gyroAxes != [3]byte{0x4C, 0xCD, 0x6C} {
		t.Errorf("gyro axis opcodes = %x", gyroAxes)
	}
	if gyroSign != [3]byte{0x36, 0x56, 0x76} {
		t.Errorf("gyro sign opcodes = %x", gyroSign)
	}

	// Z down flips two axes; the corresponding sign opcodes gain the low bit.
	if err := d.setOrientation(uint16(OrientZDown)); err != nil {
		t.Fatalf("setOrientation: %v", err)
	}
	bus.mu.Lock()
	gyroSign = [3]byte{bus.mem[memFCFG3], bus.mem[memFCFG3+1], bus.mem[memFCFG3+2]}
	bus.mu.Unlock()
	if gyroSign != [3]byte{0x37, 0x56, 0x77} {
		t.Errorf("Z down gyro sign opcodes = %x", gyroSign)
	}
}

func TestEnableFeaturesWritesGyroScale(t *testing.T) {
	d, bus := newTestDriver(t, nil)

	if err := d.enableFeatures(); err != nil {
		t.Fatalf("enableFeatures: %v", err)
	}
	// 46850825 big-endian at D0_104 scales the quaternion integrator.
	want := [4]byte{0x02, 0xCA, 0xE3, 0x09}
	bus.mu.Lock()
	got := [4]byte(bus.mem[memD0_104 : memD0_104+4])
	bus.mu.Unlock()
	if got != want {
		t.Errorf("gyro scale factor = % 02x, want % 02x", got, want)
	}
}
