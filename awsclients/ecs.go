package awsclients

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/structurely/ecs-autoscaler/cluster"
	"github.com/structurely/ecs-autoscaler/ecserrors"
	"github.com/structurely/ecs-autoscaler/state"
)

// ECSAPI is the subset of *ecs.Client this adapter calls.
type ECSAPI interface {
	DescribeClusters(ctx context.Context, params *ecs.DescribeClustersInput, optFns ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
	ListContainerInstances(ctx context.Context, params *ecs.ListContainerInstancesInput, optFns ...func(*ecs.Options)) (*ecs.ListContainerInstancesOutput, error)
	DescribeContainerInstances(ctx context.Context, params *ecs.DescribeContainerInstancesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeContainerInstancesOutput, error)
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	DescribeTaskDefinition(ctx context.Context, params *ecs.DescribeTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTaskDefinitionOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	UpdateContainerInstancesState(ctx context.Context, params *ecs.UpdateContainerInstancesStateInput, optFns ...func(*ecs.Options)) (*ecs.UpdateContainerInstancesStateOutput, error)
}

// ContainerClient implements cluster.ContainerAPI against a real ECS
// cluster.
type ContainerClient struct {
	API ECSAPI
}

var _ cluster.ContainerAPI = (*ContainerClient)(nil)

// ClusterExists reports whether clusterName is ACTIVE.
func (c *ContainerClient) ClusterExists(ctx context.Context, clusterName string) (bool, error) {
	out, err := c.API.DescribeClusters(ctx, &ecs.DescribeClustersInput{Clusters: []string{clusterName}})
	if err != nil {
		return false, ecserrors.New(ecserrors.KindClusterUnknown, fmt.Errorf("DescribeClusters %q: %w", clusterName, err), map[string]any{"cluster": clusterName})
	}
	for _, cl := range out.Clusters {
		if cl.Status != nil && *cl.Status == "ACTIVE" {
			return true, nil
		}
	}
	return false, nil
}

// ListNodes paginates ListContainerInstances and normalizes every
// container instance into a state.Node, including its registered and
// remaining CPU/MEMORY resources and running/pending task counts.
func (c *ContainerClient) ListNodes(ctx context.Context, clusterName string) ([]state.Node, error) {
	var arns []string
	var nextToken *string
	for {
		out, err := c.API.ListContainerInstances(ctx, &ecs.ListContainerInstancesInput{
			Cluster:   aws.String(clusterName),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, ecserrors.New(ecserrors.KindClusterUnknown, fmt.Errorf("ListContainerInstances %q: %w", clusterName, err), map[string]any{"cluster": clusterName})
		}
		arns = append(arns, out.ContainerInstanceArns...)
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	if len(arns) == 0 {
		return nil, nil
	}

	nodes := make([]state.Node, 0, len(arns))
	const batchSize = 100
	for start := 0; start < len(arns); start += batchSize {
		end := start + batchSize
		if end > len(arns) {
			end = len(arns)
		}
		out, err := c.API.DescribeContainerInstances(ctx, &ecs.DescribeContainerInstancesInput{
			Cluster:            aws.String(clusterName),
			ContainerInstances: arns[start:end],
		})
		if err != nil {
			return nil, ecserrors.New(ecserrors.KindClusterUnknown, fmt.Errorf("DescribeContainerInstances %q: %w", clusterName, err), map[string]any{"cluster": clusterName})
		}
		for _, ci := range out.ContainerInstances {
			nodes = append(nodes, normalizeNode(ci))
		}
	}
	return nodes, nil
}

func normalizeNode(ci ecstypes.ContainerInstance) state.Node {
	n := state.Node{
		ID:                   aws.ToString(ci.ContainerInstanceArn),
		ContainerInstanceARN: aws.ToString(ci.ContainerInstanceArn),
		EC2InstanceID:        aws.ToString(ci.Ec2InstanceId),
		RunningTaskCount:     int(ci.RunningTasksCount),
		PendingTaskCount:     int(ci.PendingTasksCount),
	}
	if ci.Status != nil && *ci.Status == "DRAINING" {
		n.Status = state.NodeDraining
	} else {
		n.Status = state.NodeActive
	}
	for _, r := range ci.RegisteredResources {
		switch aws.ToString(r.Name) {
		case "CPU":
			n.RegisteredCPU = int64(r.IntegerValue)
		case "MEMORY":
			n.RegisteredMem = int64(r.IntegerValue)
		}
	}
	for _, r := range ci.RemainingResources {
		switch aws.ToString(r.Name) {
		case "CPU":
			n.RemainingCPU = int64(r.IntegerValue)
		case "MEMORY":
			n.RemainingMem = int64(r.IntegerValue)
		}
	}
	return n
}

// DescribeService fetches a service's current task count and the combined
// CPU/MEMORY footprint of one task, read from its active task definition.
func (c *ContainerClient) DescribeService(ctx context.Context, clusterName, serviceName string) (cluster.ServiceInfo, error) {
	out, err := c.API.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(clusterName),
		Services: []string{serviceName},
	})
	if err != nil {
		return cluster.ServiceInfo{}, fmt.Errorf("DescribeServices %s/%s: %w", clusterName, serviceName, err)
	}
	if len(out.Services) == 0 {
		return cluster.ServiceInfo{}, fmt.Errorf("service %s/%s not found", clusterName, serviceName)
	}
	svc := out.Services[0]

	taskDef, err := c.API.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: svc.TaskDefinition,
	})
	if err != nil {
		return cluster.ServiceInfo{}, fmt.Errorf("DescribeTaskDefinition %s: %w", aws.ToString(svc.TaskDefinition), err)
	}

	cpu, mem := taskFootprint(taskDef.TaskDefinition)
	return cluster.ServiceInfo{
		TaskCount: int(svc.RunningCount),
		TaskCPU:   cpu,
		TaskMem:   mem,
	}, nil
}

// taskFootprint sums each container definition's CPU/MEMORY reservation;
// falls back to the task-level Cpu/Memory fields when containers don't
// specify their own (common for Fargate-style task definitions).
func taskFootprint(td *ecstypes.TaskDefinition) (cpu, mem int64) {
	if td == nil {
		return 0, 0
	}
	for _, c := range td.ContainerDefinitions {
		cpu += int64(c.Cpu)
		if c.Memory != nil {
			mem += int64(*c.Memory)
		} else if c.MemoryReservation != nil {
			mem += int64(*c.MemoryReservation)
		}
	}
	if cpu == 0 {
		if v, err := strconv.ParseInt(aws.ToString(td.Cpu), 10, 64); err == nil {
			cpu = v
		}
	}
	if mem == 0 {
		if v, err := strconv.ParseInt(aws.ToString(td.Memory), 10, 64); err == nil {
			mem = v
		}
	}
	return cpu, mem
}

// UpdateServiceDesiredCount sets a service's desired task count.
func (c *ContainerClient) UpdateServiceDesiredCount(ctx context.Context, clusterName, serviceName string, desiredCount int) error {
	_, err := c.API.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(clusterName),
		Service:      aws.String(serviceName),
		DesiredCount: aws.Int32(int32(desiredCount)),
	})
	if err != nil {
		return fmt.Errorf("UpdateService %s/%s: %w", clusterName, serviceName, err)
	}
	return nil
}

// DrainContainerInstance transitions a container instance to DRAINING so
// ECS stops placing new tasks there and begins rescheduling existing ones.
func (c *ContainerClient) DrainContainerInstance(ctx context.Context, clusterName, containerInstanceID string) error {
	_, err := c.API.UpdateContainerInstancesState(ctx, &ecs.UpdateContainerInstancesStateInput{
		Cluster:            aws.String(clusterName),
		ContainerInstances: []string{containerInstanceID},
		Status:             ecstypes.ContainerInstanceStatusDraining,
	})
	if err != nil {
		return fmt.Errorf("UpdateContainerInstancesState %s/%s: %w", clusterName, containerInstanceID, err)
	}
	return nil
}
