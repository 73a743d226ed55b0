// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package interrupt exposes a GPIO edge as a pollable wake-up source for the
// IMU sampling loop.
package interrupt

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// EdgeSource delivers a wake-up on each hardware edge.
type EdgeSource interface {
	// WaitForEdge blocks until an edge arrives or the timeout expires.
	// It returns false on timeout.
	WaitForEdge(timeout time.Duration) bool
	Close() error
}

type gpioEdge struct {
	pin gpio.PinIO
}

// OpenFallingEdge configures the named GPIO pin as a falling-edge-sensitive
// input and returns it as an EdgeSource. The MPU9250 INT pin is programmed
// active-low, so the falling edge marks data-ready.
func OpenFallingEdge(pinName string) (EdgeSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("interrupt: periph host init: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("interrupt: GPIO pin %q not found", pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("interrupt: configure pin %q: %w", pinName, err)
	}
	return &gpioEdge{pin: pin}, nil
}

func (g *gpioEdge) WaitForEdge(timeout time.Duration) bool {
	return g.pin.WaitForEdge(timeout)
}

func (g *gpioEdge) Close() error {
	return g.pin.Halt()
}
