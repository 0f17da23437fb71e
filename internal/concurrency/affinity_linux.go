//go:build linux

// File: internal/concurrency/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CPU pinning through sched_setaffinity. The caller must hold
// runtime.LockOSThread.

package concurrency

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// maxCPUs is the capacity of unix.CPUSet (CPU_SETSIZE).
const maxCPUs = 1024

func pinCurrentThread(cpu int) error {
	if cpu < 0 || cpu >= maxCPUs {
		return fmt.Errorf("cpu %d out of range [0,%d)", cpu, maxCPUs)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity: %w", err)
	}
	return nil
}

// CurrentCPUAffinity returns the CPUs the calling thread may run on.
func CurrentCPUAffinity() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	var cpus []int
	for i := 0; i < maxCPUs; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
