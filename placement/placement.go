// Package placement implements the two-dimensional first-fit bin packer:
// the "do new tasks fit?" check used for scale-up, and the "can this node's
// load be re-homed onto its peers?" check used for scale-down. Pairs are
// scanned in input order and never sorted — matching-the-source ordering
// semantics is required for decision reproducibility (see design notes);
// sorting by most-loaded-first would change outcomes.
package placement

import (
	"github.com/structurely/ecs-autoscaler/inventory"
	"github.com/structurely/ecs-autoscaler/state"
)

// PlaceTask scans pairs in order for the first one with strictly more free
// CPU and memory than requested, deducts the request from it, and reports
// success. Exact-fit placements (free == need) are deliberately rejected:
// free capacity must exceed need, not merely equal it.
func PlaceTask(pairs []inventory.Pair, needCPU, needMem int64) bool {
	for i := range pairs {
		if pairs[i].CPUFree > needCPU && pairs[i].MemFree > needMem {
			pairs[i].CPUFree -= needCPU
			pairs[i].MemFree -= needMem
			return true
		}
	}
	return false
}

// Allocate is semantically identical to PlaceTask (same strict-inequality
// first-fit scan); it exists as a distinct name for caller-intent clarity
// at call sites that are allocating an evacuated node's existing load
// rather than placing a new task.
func Allocate(pairs []inventory.Pair, needCPU, needMem int64) bool {
	return PlaceTask(pairs, needCPU, needMem)
}

// FitServicesOn attempts to place every up-scaling service's pending tasks
// onto pairs, repeating PlaceTask TaskDiff times per service with
// TaskDiff > 0, in the given service order. Mutates pairs in place; returns
// false on the first task that does not fit.
func FitServicesOn(pairs []inventory.Pair, services []state.Service) bool {
	for _, svc := range services {
		if svc.TaskDiff <= 0 {
			continue
		}
		for i := 0; i < svc.TaskDiff; i++ {
			if !PlaceTask(pairs, svc.TaskCPU, svc.TaskMem) {
				return false
			}
		}
	}
	return true
}

// CanEvacuate reports whether candidate's used load, plus every pending
// task of upscaling, can be re-homed onto allNodes' other active members
// using strict-less-than fit in first-fit order:
//  1. Build pairs from every active node in allNodes except candidate.
//     Fails if there are no such nodes.
//  2. Allocate candidate's used (cpu, mem) into those pairs.
//  3. On the reduced pairs, fit every task of upscaling.
func CanEvacuate(candidate state.Node, allNodes []state.Node, upscaling []state.Service) (bool, error) {
	pairs, err := inventory.ActivePairsExcept(allNodes, candidate.ID)
	if err != nil {
		return false, err
	}
	if len(pairs) == 0 {
		return false, nil
	}

	used := inventory.Used(candidate)
	if !Allocate(pairs, used.CPUFree, used.MemFree) {
		return false, nil
	}

	return FitServicesOn(pairs, upscaling), nil
}
