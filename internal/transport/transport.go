// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport provides the register-level bus the IMU driver runs on.
//
// The bus claim is advisory: participants are expected to check InUse before
// starting a multi-step transaction and to hold the claim for its duration.
// Nothing enforces it at the hardware level.
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus is a byte/word oriented register transport with an advisory claim.
type Bus interface {
	// SetAddress selects the device address for subsequent transfers.
	// The MPU9250 and its internal AK8963 magnetometer live at different
	// addresses on the same physical bus.
	SetAddress(addr uint16)

	// Claim marks the bus as in use. Release clears the mark. InUse reports
	// whether some other routine currently holds the claim.
	Claim()
	Release()
	InUse() bool

	ReadReg(reg byte) (byte, error)
	// ReadWord reads two consecutive registers as a big-endian 16-bit value.
	ReadWord(reg byte) (uint16, error)
	// ReadRegs reads len(p) bytes starting at reg. It may return fewer bytes
	// than requested for FIFO-style windows; n reports how many are valid.
	ReadRegs(reg byte, p []byte) (n int, err error)
	WriteReg(reg, val byte) error
	WriteRegs(reg byte, p []byte) error

	Close() error
}

type i2cBus struct {
	bus  i2c.BusCloser
	addr atomic.Uint32
	used atomic.Bool

	mu sync.Mutex // serializes Tx pairs
}

// OpenI2C initializes the periph host and opens the named I2C bus
// ("" selects the first available one), addressed at addr.
func OpenI2C(name string, addr uint16) (Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("transport: periph host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("transport: open i2c bus %q: %w", name, err)
	}
	b := &i2cBus{bus: bus}
	b.addr.Store(uint32(addr))
	return b, nil
}

func (b *i2cBus) SetAddress(addr uint16) { b.addr.Store(uint32(addr)) }

func (b *i2cBus) Claim()      { b.used.Store(true) }
func (b *i2cBus) Release()    { b.used.Store(false) }
func (b *i2cBus) InUse() bool { return b.used.Load() }

func (b *i2cBus) dev() *i2c.Dev {
	return &i2c.Dev{Bus: b.bus, Addr: uint16(b.addr.Load())}
}

func (b *i2cBus) ReadReg(reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf [1]byte
	if err := b.dev().Tx([]byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("transport: read reg 0x%02x: %w", reg, err)
	}
	return buf[0], nil
}

func (b *i2cBus) ReadWord(reg byte) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf [2]byte
	if err := b.dev().Tx([]byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("transport: read word 0x%02x: %w", reg, err)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (b *i2cBus) ReadRegs(reg byte, p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev().Tx([]byte{reg}, p); err != nil {
		return 0, fmt.Errorf("transport: read %d bytes at 0x%02x: %w", len(p), reg, err)
	}
	return len(p), nil
}

func (b *i2cBus) WriteReg(reg, val byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev().Tx([]byte{reg, val}, nil); err != nil {
		return fmt.Errorf("transport: write reg 0x%02x: %w", reg, err)
	}
	return nil
}

func (b *i2cBus) WriteRegs(reg byte, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, 0, len(p)+1)
	buf = append(buf, reg)
	buf = append(buf, p...)
	if err := b.dev().Tx(buf, nil); err != nil {
		return fmt.Errorf("transport: write %d bytes at 0x%02x: %w", len(p), reg, err)
	}
	return nil
}

func (b *i2cBus) Close() error { return b.bus.Close() }
