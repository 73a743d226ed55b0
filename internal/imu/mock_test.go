// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"sync"
	"sync/atomic"
	"time"
)

// mockBus emulates just enough of the chip for driver tests: a register
// file per device address, the banked motion-processor memory behind
// BANK_SEL/MEM_R_W, and a scripted FIFO.
type mockBus struct {
	mu   sync.Mutex
	addr uint16
	used atomic.Bool

	regs map[uint16]map[byte]byte
	mem  [dmpMemorySize]byte
	bank uint16

	// Each entry is the complete FIFO content for one read cycle. The
	// count register reports the remaining bytes of the current entry;
	// reads from FIFO_R_W consume them.
	fifoQueue [][]byte
	fifoBuf   []byte

	// corruptMemReads flips a bit on every memory read-back.
	corruptMemReads bool
}

func newMockBus() *mockBus {
	m := &mockBus{
		addr: MPUAddress,
		regs: map[uint16]map[byte]byte{
			MPUAddress: {regWhoAmI: whoAmIValue},
			AKAddress:  {akRegWIA: akWIAValue, akRegST1: 0x01},
		},
	}
	// Neutral factory sensitivity: (128-128)/256+1 = 1.0 per axis.
	m.regs[AKAddress][akRegASAX] = 128
	m.regs[AKAddress][akRegASAX+1] = 128
	m.regs[AKAddress][akRegASAX+2] = 128
	return m
}

func (m *mockBus) queueFIFO(entries ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fifoQueue = append(m.fifoQueue, entries...)
}

func (m *mockBus) SetAddress(addr uint16) {
	m.mu.Lock()
	m.addr = addr
	m.mu.Unlock()
}

func (m *mockBus) Claim()      { m.used.Store(true) }
func (m *mockBus) Release()    { m.used.Store(false) }
func (m *mockBus) InUse() bool { return m.used.Load() }

func (m *mockBus) device() map[byte]byte {
	if m.regs[m.addr] == nil {
		m.regs[m.addr] = map[byte]byte{}
	}
	return m.regs[m.addr]
}

func (m *mockBus) ReadReg(reg byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device()[reg], nil
}

func (m *mockBus) ReadWord(reg byte) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addr == MPUAddress && reg == regFIFOCountH {
		if len(m.fifoBuf) == 0 && len(m.fifoQueue) > 0 {
			m.fifoBuf = m.fifoQueue[0]
			m.fifoQueue = m.fifoQueue[1:]
		}
		return uint16(len(m.fifoBuf)), nil
	}
	d := m.device()
	return uint16(d[reg])<<8 | uint16(d[reg+1]), nil
}

func (m *mockBus) ReadRegs(reg byte, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addr == MPUAddress && reg == regFIFORW {
		n := copy(p, m.fifoBuf)
		m.fifoBuf = m.fifoBuf[n:]
		return n, nil
	}
	if m.addr == MPUAddress && reg == regMemRW {
		n := copy(p, m.mem[m.bank:])
		if m.corruptMemReads && n > 0 {
			p[0] ^= 0x01
		}
		return n, nil
	}
	d := m.device()
	for i := range p {
		p[i] = d[reg+byte(i)]
	}
	return len(p), nil
}

func (m *mockBus) WriteReg(reg, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device()[reg] = val
	return nil
}

func (m *mockBus) WriteRegs(reg byte, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addr == MPUAddress && reg == regBankSel && len(p) == 2 {
		m.bank = uint16(p[0])<<8 | uint16(p[1])
		return nil
	}
	if m.addr == MPUAddress && reg == regMemRW {
		copy(m.mem[m.bank:], p)
		return nil
	}
	d := m.device()
	for i, v := range p {
		d[reg+byte(i)] = v
	}
	return nil
}

func (m *mockBus) Close() error { return nil }

// mockEdge delivers a fixed number of interrupt edges, then times out.
type mockEdge struct {
	remaining atomic.Int32
}

func (e *mockEdge) WaitForEdge(timeout time.Duration) bool {
	if e.remaining.Add(-1) >= 0 {
		return true
	}
	time.Sleep(time.Millisecond)
	return false
}

func (e *mockEdge) Close() error { return nil }
