// Package cluster implements the Cluster Scaling Coordinator: the
// per-cluster state machine that reconciles node-group bounds, terminates
// emptied draining nodes, runs the scale-up/scale-down bin-packing checks
// with strict precedence, and finally applies per-service task-count
// deltas.
package cluster

import (
	"context"

	"github.com/structurely/ecs-autoscaler/state"
)

// FSMState names one node of the per-cluster, per-run state machine:
// START -> RECONCILED -> POST_TERMINATE -> NOT_SCALED_UP ->
// (SCALED_DOWN|NOT_SCALED_DOWN) -> DONE. SCALED_UP is terminal: a scale-up
// ends the run for the cluster right after POST_TERMINATE. ABORTED_MAX_ZERO
// is terminal right after RECONCILED. The scale-up step is skipped when
// desired is already at max, and the scale-down step when desired is at
// min. RunCluster never enters SERVICES_APPLIED; DONE follows the service
// updates directly.
type FSMState string

const (
	StateStart          FSMState = "START"
	StateReconciled     FSMState = "RECONCILED"
	StateAbortedMaxZero FSMState = "ABORTED_MAX_ZERO"
	StatePostTerminate  FSMState = "POST_TERMINATE"
	StateScaledUp       FSMState = "SCALED_UP"
	StateNotScaledUp    FSMState = "NOT_SCALED_UP"
	StateScaledDown     FSMState = "SCALED_DOWN"
	StateNotScaledDown  FSMState = "NOT_SCALED_DOWN"
	StateServicesApplied FSMState = "SERVICES_APPLIED"
	StateDone           FSMState = "DONE"
)

// Result summarizes one cluster's run for logging and tests.
type Result struct {
	Cluster    string
	FinalState FSMState
	// Scaled is true if the run decided to grow the node group by one or to
	// drain one node; in a dry run it is set although no call is made. At
	// most one of scale-up/scale-down ever fires per run.
	Scaled bool
}

// NodeGroupAPI is the node-group service surface the coordinator consumes:
// describe/reconcile bounds, grow by one, and terminate an emptied
// draining instance. Backed by aws-sdk-go-v2's autoscaling client.
type NodeGroupAPI interface {
	// Describe fetches the current desired/min/max for name, paginating
	// internally as needed. Fails with NodeGroupUnknown if name does not
	// exist.
	Describe(ctx context.Context, name string) (state.NodeGroupState, error)
	// UpdateBounds pushes new min/max to the node group.
	UpdateBounds(ctx context.Context, name string, min, max int) error
	// SetDesiredCapacity grows (or shrinks) the node group to desired.
	SetDesiredCapacity(ctx context.Context, name string, desired int) error
	// TerminateInstance terminates ec2InstanceID, optionally decrementing
	// the node group's desired capacity in the same call.
	TerminateInstance(ctx context.Context, ec2InstanceID string, decrementDesired bool) error
}

// ServiceInfo is a service's current runtime shape: its task count and the
// per-task resource footprint (the sum of its container definitions).
type ServiceInfo struct {
	TaskCount int
	TaskCPU   int64
	TaskMem   int64
}

// ContainerAPI is the container-orchestration service surface the
// coordinator consumes. Backed by aws-sdk-go-v2's ecs client.
type ContainerAPI interface {
	// ClusterExists reports whether clusterName is a known cluster.
	ClusterExists(ctx context.Context, clusterName string) (bool, error)
	// ListNodes returns every container instance (active and draining) in
	// clusterName, normalized into state.Node.
	ListNodes(ctx context.Context, clusterName string) ([]state.Node, error)
	// DescribeService fetches serviceName's current shape. Fails with a
	// plain, unclassified error if the service itself does not exist; the
	// coordinator then demotes only that service (see DESIGN.md).
	DescribeService(ctx context.Context, clusterName, serviceName string) (ServiceInfo, error)
	// UpdateServiceDesiredCount sets serviceName's desired task count.
	UpdateServiceDesiredCount(ctx context.Context, clusterName, serviceName string, desiredCount int) error
	// DrainContainerInstance transitions a container instance to DRAINING.
	DrainContainerInstance(ctx context.Context, clusterName, containerInstanceID string) error
}
