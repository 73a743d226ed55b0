// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"testing"
	"time"
)

// TestSamplingLoop runs the full motion-processor bring-up against the
// mock bus and checks the callback contract: the first cycle only primes
// the driver, and the handler runs once per subsequent good cycle.
func TestSamplingLoop(t *testing.T) {
	d, bus := newTestDriver(t, func(c *Config) {
		c.EnableMag = false
	})

	// Three interrupt edges, three one-packet FIFO reads. The first is
	// consumed by the priming cycle.
	bus.queueFIFO(
		dmpPacket([3]int16{1, 2, 3}, [3]int16{4, 5, 6}),
		dmpPacket([3]int16{10, 20, 30}, [3]int16{40, 50, 60}),
		dmpPacket([3]int16{100, 200, 300}, [3]int16{400, 500, 600}),
	)
	edge := &mockEdge{}
	edge.remaining.Store(3)

	samples := make(chan Sample, 8)
	d.SetHandler(func(s *Sample) {
		samples <- *s
	})

	if err := d.InitDMP(make([]byte, 64), edge); err != nil {
		t.Fatalf("InitDMP: %v", err)
	}
	defer d.PowerOff()

	var got []Sample
	timeout := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case s := <-samples:
			got = append(got, s)
		case <-timeout:
			t.Fatalf("handler ran %d times, want 2", len(got))
		}
	}

	if got[0].RawAccel != [3]int16{10, 20, 30} {
		t.Errorf("first delivered sample accel = %v, priming cycle not skipped", got[0].RawAccel)
	}
	if got[1].RawGyro != [3]int16{400, 500, 600} {
		t.Errorf("second delivered sample gyro = %v", got[1].RawGyro)
	}
	// Mag disabled: fused orientation mirrors the motion processor.
	if got[0].FusedQuat != got[0].DMPQuat {
		t.Errorf("fused quat %v != dmp quat %v", got[0].FusedQuat, got[0].DMPQuat)
	}
	if !d.LastReadOK() {
		t.Errorf("LastReadOK = false after successful cycles")
	}

	select {
	case s := <-samples:
		t.Errorf("unexpected extra handler call with sample %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSamplingLoopEmptyFIFOSkipsHandler(t *testing.T) {
	d, _ := newTestDriver(t, func(c *Config) {
		c.EnableMag = false
	})

	// Edges arrive but the FIFO never fills; the handler must stay quiet
	// and LastReadOK must report the failure.
	edge := &mockEdge{}
	edge.remaining.Store(4)

	called := make(chan struct{}, 8)
	d.SetHandler(func(*Sample) { called <- struct{}{} })

	if err := d.InitDMP(make([]byte, 16), edge); err != nil {
		t.Fatalf("InitDMP: %v", err)
	}
	defer d.PowerOff()

	select {
	case <-called:
		t.Errorf("handler ran on empty FIFO")
	case <-time.After(200 * time.Millisecond):
	}
	if d.LastReadOK() {
		t.Errorf("LastReadOK = true after empty-FIFO cycles")
	}
}

func TestPowerOffStopsLoop(t *testing.T) {
	d, _ := newTestDriver(t, func(c *Config) {
		c.EnableMag = false
	})

	edge := &mockEdge{}
	if err := d.InitDMP(make([]byte, 16), edge); err != nil {
		t.Fatalf("InitDMP: %v", err)
	}

	if err := d.PowerOff(); err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	if d.State() != "stopped" {
		t.Errorf("State = %q, want stopped", d.State())
	}
	// Safe to call again.
	if err := d.PowerOff(); err != nil {
		t.Fatalf("second PowerOff: %v", err)
	}
}

func TestInitDMPBadDeviceID(t *testing.T) {
	d, bus := newTestDriver(t, nil)
	bus.regs[MPUAddress][regWhoAmI] = 0x68

	err := d.InitDMP(make([]byte, 16), &mockEdge{})
	if err == nil {
		t.Fatalf("InitDMP succeeded with wrong device ID")
	}
}

func TestLoopStateNames(t *testing.T) {
	d, _ := newTestDriver(t, nil)
	cases := []struct {
		state int32
		want  string
	}{
		{stateIdle, "idle"},
		{stateWaitingForEdge, "waiting_for_edge"},
		{stateDraining, "draining"},
		{stateReading, "reading"},
		{stateShuttingDown, "shutting_down"},
		{stateStopped, "stopped"},
	}
	for _, tc := range cases {
		d.loop.state.Store(tc.state)
		if got := d.State(); got != tc.want {
			t.Errorf("state %d reads %q, want %q", tc.state, got, tc.want)
		}
	}
}
