// Package inventory normalizes raw per-node capacity descriptors into the
// uniform (cpu, mem) pairs the Placement Engine operates on.
package inventory

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/structurely/ecs-autoscaler/ecserrors"
	"github.com/structurely/ecs-autoscaler/state"
)

// Pair is the free-capacity tuple the Placement Engine deducts from.
type Pair struct {
	CPUFree int64
	MemFree int64
}

// Validate rejects a Node whose registered CPU or MEMORY is missing (zero),
// whose remaining CPU or MEMORY is negative, or whose remaining capacity
// exceeds its registered capacity (which would imply negative used
// capacity). Fails with MissingResource. A remaining value absent from the
// descriptor reads as zero and passes, the same as on a fully used node.
func Validate(n state.Node) error {
	if n.RegisteredCPU <= 0 || n.RegisteredMem <= 0 {
		return ecserrors.New(ecserrors.KindMissingResource,
			fmt.Errorf("node %s: registered CPU or MEMORY missing", n.ID), map[string]any{"node": n.ID})
	}
	if n.RemainingCPU < 0 || n.RemainingMem < 0 {
		return ecserrors.New(ecserrors.KindMissingResource,
			fmt.Errorf("node %s: remaining capacity is negative", n.ID), map[string]any{"node": n.ID})
	}
	if n.RemainingCPU > n.RegisteredCPU || n.RemainingMem > n.RegisteredMem {
		return ecserrors.New(ecserrors.KindMissingResource,
			fmt.Errorf("node %s: remaining capacity exceeds registered capacity", n.ID), map[string]any{"node": n.ID})
	}
	return nil
}

// Available returns the (cpu_available, mem_available) pair used for
// placement: simply the node's remaining resources.
func Available(n state.Node) Pair {
	return Pair{CPUFree: n.RemainingCPU, MemFree: n.RemainingMem}
}

// Used returns the (cpu_used, mem_used) pair used for eviction arithmetic.
func Used(n state.Node) Pair {
	return Pair{CPUFree: n.UsedCPU(), MemFree: n.UsedMem()}
}

// ActivePairs validates and normalizes every active node into placement
// pairs, preserving input order (the first-fit scan order).
func ActivePairs(nodes []state.Node) ([]Pair, error) {
	pairs := make([]Pair, 0, len(nodes))
	for _, n := range nodes {
		if n.Status != state.NodeActive {
			continue
		}
		if err := Validate(n); err != nil {
			return nil, err
		}
		p := Available(n)
		klog.V(4).Infof("node %s: registered cpu=%d mem=%d remaining cpu=%d mem=%d pending_tasks=%d",
			n.ID, n.RegisteredCPU, n.RegisteredMem, n.RemainingCPU, n.RemainingMem, n.PendingTaskCount)
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// ActivePairsExcept is ActivePairs but skips the node whose ID equals
// exceptID, used by the scale-down evacuation check.
func ActivePairsExcept(nodes []state.Node, exceptID string) ([]Pair, error) {
	pairs := make([]Pair, 0, len(nodes))
	for _, n := range nodes {
		if n.Status != state.NodeActive || n.ID == exceptID {
			continue
		}
		if err := Validate(n); err != nil {
			return nil, err
		}
		p := Available(n)
		klog.V(4).Infof("node %s: registered cpu=%d mem=%d remaining cpu=%d mem=%d pending_tasks=%d",
			n.ID, n.RegisteredCPU, n.RegisteredMem, n.RemainingCPU, n.RemainingMem, n.PendingTaskCount)
		pairs = append(pairs, p)
	}
	return pairs, nil
}
