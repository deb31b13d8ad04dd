// Package state holds the runtime entities constructed fresh for each
// invocation: observed Nodes, the NodeGroupState mirrored locally so it can
// be mutated in lockstep with issued cloud calls, and the per-service
// scaling intent the Placement Engine and Cluster Scaling Coordinator act
// on.
package state

// NodeStatus is a Node's lifecycle state within the cluster.
type NodeStatus string

const (
	NodeActive   NodeStatus = "ACTIVE"
	NodeDraining NodeStatus = "DRAINING"
)

// Node is one cluster member, normalized from a container-instance
// descriptor. RegisteredCPU/RegisteredMem are total capacity; RemainingCPU/
// RemainingMem are what's left after already-placed tasks.
type Node struct {
	ID                   string
	ContainerInstanceARN string
	EC2InstanceID        string
	Status               NodeStatus
	RegisteredCPU        int64
	RegisteredMem        int64
	RemainingCPU         int64
	RemainingMem         int64
	RunningTaskCount     int
	PendingTaskCount     int
}

// UsedCPU is RegisteredCPU - RemainingCPU.
func (n Node) UsedCPU() int64 { return n.RegisteredCPU - n.RemainingCPU }

// UsedMem is RegisteredMem - RemainingMem.
func (n Node) UsedMem() int64 { return n.RegisteredMem - n.RemainingMem }

// Service is a runtime scaling candidate: either a real service (Name
// non-empty) or the synthetic BufferPseudoService (Name empty) injected
// when a cluster's cpu_buffer/mem_buffer is non-zero.
type Service struct {
	Name         string
	TaskCount    int
	TaskCPU      int64
	TaskMem      int64
	DesiredTasks int
	TaskDiff     int
}

// IsBuffer reports whether this Service is the synthetic buffer headroom
// placeholder rather than a real, named service.
func (s Service) IsBuffer() bool { return s.Name == "" }

// NewBufferService builds the synthetic Service standing in for reserved
// headroom: task_diff is always +1 so it is evaluated exactly once by the
// placement arithmetic, and it never flows to the task-update API.
func NewBufferService(cpuBuffer, memBuffer int64) Service {
	return Service{
		TaskCPU:      cpuBuffer,
		TaskMem:      memBuffer,
		DesiredTasks: 1,
		TaskDiff:     1,
	}
}

// NodeGroupState is the locally-held mirror of the node group's desired/
// min/max capacity, threaded explicitly through the coordinator rather than
// held as a process-wide mutable (per the design notes).
type NodeGroupState struct {
	Name    string
	Desired int
	Min     int
	Max     int
}

// Reconcile overwrites ng's Min/Max with the ClusterDefinition's values
// whenever they disagree, reporting whether a change was made. The
// definition always wins. Desired is re-clamped into the reconciled bounds.
func (ng *NodeGroupState) Reconcile(defMin, defMax int) (changed bool) {
	if ng.Min != defMin || ng.Max != defMax {
		ng.Min, ng.Max = defMin, defMax
		changed = true
	}
	if ng.Desired < ng.Min {
		ng.Desired = ng.Min
	}
	if ng.Desired > ng.Max {
		ng.Desired = ng.Max
	}
	return changed
}
