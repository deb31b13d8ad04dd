package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structurely/ecs-autoscaler/state"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		node    state.Node
		wantErr bool
	}{
		{"healthy node", state.Node{RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 512, RemainingMem: 1024}, false},
		{"missing both registered", state.Node{}, true},
		{"negative remaining", state.Node{RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: -1, RemainingMem: 1024}, true},
		{"remaining exceeds registered", state.Node{RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 2000, RemainingMem: 1024}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.node)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestActivePairsSkipsDrainingAndPreservesOrder(t *testing.T) {
	nodes := []state.Node{
		{ID: "a", Status: state.NodeActive, RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 800, RemainingMem: 1500},
		{ID: "b", Status: state.NodeDraining, RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 1024, RemainingMem: 2048},
		{ID: "c", Status: state.NodeActive, RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 200, RemainingMem: 300},
	}

	pairs, err := ActivePairs(nodes)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{CPUFree: 800, MemFree: 1500}, pairs[0])
	assert.Equal(t, Pair{CPUFree: 200, MemFree: 300}, pairs[1])
}

func TestActivePairsExceptSkipsNamedNode(t *testing.T) {
	nodes := []state.Node{
		{ID: "a", Status: state.NodeActive, RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 800, RemainingMem: 1500},
		{ID: "b", Status: state.NodeActive, RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 200, RemainingMem: 300},
	}

	pairs, err := ActivePairsExcept(nodes, "a")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, Pair{CPUFree: 200, MemFree: 300}, pairs[0])
}

func TestUsedAndAvailable(t *testing.T) {
	n := state.Node{RegisteredCPU: 1024, RegisteredMem: 2048, RemainingCPU: 300, RemainingMem: 500}
	assert.Equal(t, Pair{CPUFree: 724, MemFree: 1548}, Used(n))
	assert.Equal(t, Pair{CPUFree: 300, MemFree: 500}, Available(n))
}
