package cluster

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/structurely/ecs-autoscaler/config"
	"github.com/structurely/ecs-autoscaler/ecserrors"
	"github.com/structurely/ecs-autoscaler/inventory"
	"github.com/structurely/ecs-autoscaler/metricsources"
	"github.com/structurely/ecs-autoscaler/placement"
	"github.com/structurely/ecs-autoscaler/planner"
	"github.com/structurely/ecs-autoscaler/state"
)

// Coordinator owns one cluster's per-run orchestration.
type Coordinator struct {
	NodeGroups NodeGroupAPI
	Containers ContainerAPI
	Metrics    *metricsources.Registry
	// DryRun suppresses every mutating call while leaving decision logs
	// intact, per the "TEST_RUN" invocation marker.
	DryRun bool
}

// plannedService is one service's scaling decision plus the runtime facts
// the Placement Engine needs (its per-task footprint).
type plannedService struct {
	def      *config.ServiceDefinition
	info     ServiceInfo
	desired  int
	diff     int
	shouldAct bool
	err      error
}

// RunCluster executes the full per-cluster pipeline of §4.6: reconcile
// bounds, terminate empty draining nodes, scale-up check, scale-down
// check, apply service deltas. A scale-up ends the run for this cluster:
// neither the scale-down check nor the service updates follow it. A
// ClusterUnknown or NodeGroupUnknown error aborts immediately and is
// returned to the caller (the Run Coordinator isolates it to this cluster
// only), as is any error from the other cloud calls, with two exceptions:
// a failed termination of an emptied draining node is logged and skipped
// (desired is not decremented for it), and a per-service planning error
// only demotes that service.
func (c *Coordinator) RunCluster(ctx context.Context, def *config.ClusterDefinition) (Result, error) {
	result := Result{Cluster: def.Name, FinalState: StateStart}

	ng, err := c.NodeGroups.Describe(ctx, def.AutoscaleGroup)
	if err != nil {
		return result, err
	}

	if changed := ng.Reconcile(def.Min, def.Max); changed {
		klog.Infof("cluster %s: reconciling node group %s bounds to [%d,%d]", def.Name, def.AutoscaleGroup, def.Min, def.Max)
		if !c.DryRun {
			if err := c.NodeGroups.UpdateBounds(ctx, def.AutoscaleGroup, def.Min, def.Max); err != nil {
				return result, err
			}
		}
	}
	result.FinalState = StateReconciled

	if def.Max == 0 {
		klog.Warningf("cluster %s: max is zero, no scaling possible this run", def.Name)
		result.FinalState = StateAbortedMaxZero
		return result, nil
	}

	exists, err := c.Containers.ClusterExists(ctx, def.Name)
	if err != nil {
		return result, err
	}
	if !exists {
		return result, ecserrors.New(ecserrors.KindClusterUnknown, fmt.Errorf("cluster %q not found", def.Name), nil)
	}

	nodes, err := c.Containers.ListNodes(ctx, def.Name)
	if err != nil {
		return result, err
	}

	terminateEmptyDrainingNodes(ctx, c, def, &ng, nodes)
	result.FinalState = StatePostTerminate

	planned := c.planServices(ctx, def)
	actionable, upscaling := splitPlanned(def, planned)

	pairs, err := inventory.ActivePairs(nodes)
	if err != nil {
		return result, err
	}

	if ng.Desired < ng.Max {
		if !placement.FitServicesOn(pairs, upscaling) {
			klog.Infof("cluster %s: pending tasks do not fit, scaling node group to %d", def.Name, ng.Desired+1)
			if !c.DryRun {
				if err := c.NodeGroups.SetDesiredCapacity(ctx, def.AutoscaleGroup, ng.Desired+1); err != nil {
					return result, err
				}
			}
			ng.Desired++
			result.FinalState = StateScaledUp
			result.Scaled = true
			return result, nil
		}
		result.FinalState = StateNotScaledUp
	}

	if ng.Desired > ng.Min {
		scaledDown, err := c.tryScaleDown(ctx, def, nodes, upscaling)
		if err != nil {
			return result, err
		}
		if scaledDown {
			result.FinalState = StateScaledDown
			result.Scaled = true
		} else {
			result.FinalState = StateNotScaledDown
		}
	}

	if err := c.applyServiceDeltas(ctx, def, actionable); err != nil {
		return result, err
	}
	result.FinalState = StateDone

	return result, nil
}

func terminateEmptyDrainingNodes(ctx context.Context, c *Coordinator, def *config.ClusterDefinition, ng *state.NodeGroupState, nodes []state.Node) {
	for _, n := range nodes {
		if n.Status != state.NodeDraining || n.RunningTaskCount != 0 {
			continue
		}
		klog.Infof("cluster %s: terminating emptied draining node %s", def.Name, n.ID)
		if !c.DryRun {
			if err := c.NodeGroups.TerminateInstance(ctx, n.EC2InstanceID, true); err != nil {
				klog.Warningf("cluster %s: failed to terminate node %s: %v", def.Name, n.ID, err)
				continue
			}
		}
		ng.Desired--
	}
}

// planServices runs the Service Scaling Planner for every enabled service
// in def, concurrently fetching metrics per service (per-service Event
// ordering is untouched; only the fan-out across services is concurrent).
func (c *Coordinator) planServices(ctx context.Context, def *config.ClusterDefinition) []plannedService {
	results := make([]plannedService, len(def.Services))
	g, gctx := errgroup.WithContext(ctx)

	for i, svc := range def.Services {
		i, svc := i, svc
		results[i] = plannedService{def: svc}
		if !svc.Enabled {
			continue
		}
		g.Go(func() error {
			info, err := c.Containers.DescribeService(gctx, def.Name, svc.Name)
			if err != nil {
				results[i] = plannedService{def: svc, err: err}
				return nil
			}
			desired, diff, act, err := planner.Plan(gctx, svc, info.TaskCount, c.Metrics)
			results[i] = plannedService{def: svc, info: info, desired: desired, diff: diff, shouldAct: act, err: err}
			return nil
		})
	}

	_ = g.Wait() // individual goroutines never return a non-nil error; failures are recorded per-service
	return results
}

// splitPlanned turns the raw planner output into the actionable service
// list (real services with shouldAct true, for step 5) and the up-scaling
// list (diff > 0, including the injected buffer pseudo-service, for steps
// 3-4's placement checks). Service-local errors are logged and demote only
// the owning service; anything else is logged as unexpected but still only
// demotes that service, since spec.md names no broader fatal class here.
func splitPlanned(def *config.ClusterDefinition, planned []plannedService) (actionable []state.Service, upscaling []state.Service) {
	for _, p := range planned {
		if p.err != nil {
			if !ecserrors.ServiceLocal(p.err) {
				klog.Warningf("cluster %s: service %s: unexpected planning error, demoting: %v", def.Name, p.def.Name, p.err)
			} else {
				klog.Infof("cluster %s: service %s: %v", def.Name, p.def.Name, p.err)
			}
			continue
		}
		if !p.shouldAct {
			continue
		}
		svc := state.Service{
			Name:         p.def.Name,
			TaskCount:    p.info.TaskCount,
			TaskCPU:      p.info.TaskCPU,
			TaskMem:      p.info.TaskMem,
			DesiredTasks: p.desired,
			TaskDiff:     p.diff,
		}
		actionable = append(actionable, svc)
		if svc.TaskDiff > 0 {
			upscaling = append(upscaling, svc)
		}
	}

	if def.CPUBuffer > 0 || def.MemBuffer > 0 {
		upscaling = append(upscaling, state.NewBufferService(int64(def.CPUBuffer), int64(def.MemBuffer)))
	}

	return actionable, upscaling
}

func (c *Coordinator) tryScaleDown(ctx context.Context, def *config.ClusterDefinition, nodes []state.Node, upscaling []state.Service) (bool, error) {
	active := activeNodes(nodes)
	if len(active) == 0 {
		return false, nil
	}

	if minMemNode, ok := minBy(active, state.Node.UsedMem); ok {
		can, err := placement.CanEvacuate(minMemNode, nodes, upscaling)
		if err != nil {
			return false, err
		}
		if can {
			return true, c.drain(ctx, def, minMemNode)
		}
	}

	if minCPUNode, ok := minBy(active, state.Node.UsedCPU); ok {
		can, err := placement.CanEvacuate(minCPUNode, nodes, upscaling)
		if err != nil {
			return false, err
		}
		if can {
			return true, c.drain(ctx, def, minCPUNode)
		}
	}

	return false, nil
}

func (c *Coordinator) drain(ctx context.Context, def *config.ClusterDefinition, n state.Node) error {
	klog.Infof("cluster %s: draining node %s", def.Name, n.ID)
	if c.DryRun {
		return nil
	}
	return c.Containers.DrainContainerInstance(ctx, def.Name, n.ContainerInstanceARN)
}

func (c *Coordinator) applyServiceDeltas(ctx context.Context, def *config.ClusterDefinition, actionable []state.Service) error {
	ordered := make([]state.Service, len(actionable))
	copy(ordered, actionable)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TaskDiff < ordered[j].TaskDiff })

	for _, svc := range ordered {
		if svc.TaskDiff == 0 || svc.IsBuffer() {
			continue
		}
		klog.Infof("cluster %s: service %s: desired tasks %d -> %d", def.Name, svc.Name, svc.TaskCount, svc.DesiredTasks)
		if c.DryRun {
			continue
		}
		if err := c.Containers.UpdateServiceDesiredCount(ctx, def.Name, svc.Name, svc.DesiredTasks); err != nil {
			return err
		}
	}
	return nil
}

func activeNodes(nodes []state.Node) []state.Node {
	out := make([]state.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Status == state.NodeActive {
			out = append(out, n)
		}
	}
	return out
}

// minBy returns the element of nodes minimizing key, and false if nodes is empty.
func minBy(nodes []state.Node, key func(state.Node) int64) (state.Node, bool) {
	if len(nodes) == 0 {
		return state.Node{}, false
	}
	best := nodes[0]
	for _, n := range nodes[1:] {
		if key(n) < key(best) {
			best = n
		}
	}
	return best, true
}
