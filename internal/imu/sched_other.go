// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package imu

import "errors"

func setRealtimePriority(priority int) error {
	return errors.New("realtime scheduling only supported on linux")
}
