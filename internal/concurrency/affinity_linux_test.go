//go:build linux

package concurrency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinnedLoopRunsOnItsCPU(t *testing.T) {
	allowed, err := CurrentCPUAffinity()
	require.NoError(t, err)
	require.NotEmpty(t, allowed)
	cpu := allowed[0]

	el := newTestLoop(t, Options{Pin: true, CPU: cpu})
	var got []int
	await(t, el, func() { got, err = CurrentCPUAffinity() })
	require.NoError(t, err)
	assert.Equal(t, []int{cpu}, got)
}

func TestPinRejectsOutOfRangeCPU(t *testing.T) {
	assert.Error(t, pinCurrentThread(-1))
}
