// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"
)

// Sampling loop states, readable through State for diagnostics.
const (
	stateIdle int32 = iota
	stateWaitingForEdge
	stateDraining
	stateReading
	stateShuttingDown
	stateStopped
)

// edgeWait bounds a single wait for the interrupt line so the loop can
// notice a shutdown request even when the sensor goes quiet.
const edgeWait = time.Second

// stopTimeout bounds how long PowerOff waits for the sampling goroutine.
const stopTimeout = time.Second

type loopState struct {
	state         atomic.Int32
	lastReadOK    atomic.Bool
	lastInterrupt atomic.Int64 // µs since epoch

	stop chan struct{}
	done chan struct{}
}

// State reports what the sampling goroutine is doing.
func (d *Driver) State() string {
	switch d.loop.state.Load() {
	case stateWaitingForEdge:
		return "waiting_for_edge"
	case stateDraining:
		return "draining"
	case stateReading:
		return "reading"
	case stateShuttingDown:
		return "shutting_down"
	case stateStopped:
		return "stopped"
	}
	return "idle"
}

// LastReadOK reports whether the most recent sampling cycle produced a
// valid sample. The handler only runs on good cycles, but consumers
// polling the driver can use this to spot stale data.
func (d *Driver) LastReadOK() bool {
	return d.loop.lastReadOK.Load()
}

// MicrosSinceLastInterrupt returns the age of the newest hardware
// interrupt in microseconds.
func (d *Driver) MicrosSinceLastInterrupt() int64 {
	return time.Now().UnixMicro() - d.loop.lastInterrupt.Load()
}

func (d *Driver) startLoop() {
	d.loop.stop = make(chan struct{})
	d.loop.done = make(chan struct{})
	d.loop.state.Store(stateWaitingForEdge)
	go d.runLoop()
}

// stopLoop asks the sampling goroutine to exit and waits for it, bounded
// by stopTimeout. A handler stuck in user code must not hang shutdown.
func (d *Driver) stopLoop() {
	if d.loop.stop == nil {
		return
	}
	d.loop.state.Store(stateShuttingDown)
	select {
	case <-d.loop.stop:
	default:
		close(d.loop.stop)
	}
	select {
	case <-d.loop.done:
	case <-time.After(stopTimeout):
		log.Printf("imu: warning: sampling loop did not exit in %v", stopTimeout)
	}
}

// runLoop is the sampling goroutine. It pins itself to an OS thread so a
// realtime scheduling policy can apply, then blocks on the interrupt line
// and reads the FIFO on every falling edge. The first cycle after startup
// only primes the driver state; the handler runs from the second
// successful cycle on.
func (d *Driver) runLoop() {
	defer close(d.loop.done)
	defer d.loop.state.Store(stateStopped)

	runtime.LockOSThread()
	if d.cfg.InterruptPriority > 0 {
		if err := setRealtimePriority(d.cfg.InterruptPriority); err != nil && d.cfg.ShowWarnings {
			log.Printf("imu: warning: realtime priority not set: %v", err)
		}
	}

	// Drop whatever accumulated between configuration and now.
	d.bus.Claim()
	if err := d.resetFIFO(); err != nil {
		log.Printf("imu: %v", err)
	}
	d.bus.Release()

	priming := true
	for {
		select {
		case <-d.loop.stop:
			return
		default:
		}

		d.loop.state.Store(stateWaitingForEdge)
		if !d.edge.WaitForEdge(edgeWait) {
			continue
		}
		d.loop.state.Store(stateDraining)
		select {
		case <-d.loop.stop:
			return
		default:
		}
		d.loop.lastInterrupt.Store(time.Now().UnixMicro())

		// Read no matter who claims the bus; skipping cycles desyncs the
		// FIFO framing and costs more than a shared transfer.
		if d.bus.InUse() && d.cfg.ShowWarnings {
			log.Printf("imu: warning: bus claimed by another routine during interrupt, reading anyway")
		}
		d.bus.Claim()
		d.loop.state.Store(stateReading)
		var s Sample
		err := d.readCycle(&s)
		d.bus.Release()

		ok := err == nil
		d.loop.lastReadOK.Store(ok)
		if err != nil && err != errNoData && d.cfg.ShowWarnings {
			log.Printf("imu: sampling cycle failed: %v", err)
		}
		if priming {
			priming = false
			continue
		}
		if !ok {
			continue
		}
		d.handlerMu.Lock()
		h := d.handler
		d.handlerMu.Unlock()
		if h != nil {
			h(&s)
		}
	}
}

// readCycle produces one complete Sample from the FIFO, running yaw
// fusion when the magnetometer is enabled.
func (d *Driver) readCycle(s *Sample) error {
	d.bus.SetAddress(MPUAddress)
	if err := d.readDMPFIFO(s); err != nil {
		return err
	}
	if !d.cfg.EnableMag {
		s.FusedQuat = s.DMPQuat
		s.FusedTaitBryan = s.DMPTaitBryan
		return nil
	}
	return d.fusion.fuse(d.cfg.Orientation, d.cfg.CompassTimeConstant, d.cfg.SampleRate, s)
}
