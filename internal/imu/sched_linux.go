// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "golang.org/x/sys/unix"

// setRealtimePriority puts the calling thread under SCHED_FIFO so FIFO
// reads preempt ordinary load. Needs CAP_SYS_NICE or root.
func setRealtimePriority(priority int) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}
