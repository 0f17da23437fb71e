//go:build !linux

// File: internal/concurrency/affinity_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"

	"github.com/momentics/hioload-pipeline/api"
)

func pinCurrentThread(cpu int) error {
	return api.ErrNotSupported
}

// CurrentCPUAffinity reports every CPU; affinity is not inspected here.
func CurrentCPUAffinity() ([]int, error) {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus, nil
}
