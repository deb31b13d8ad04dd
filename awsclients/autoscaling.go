// Package awsclients adapts aws-sdk-go-v2's autoscaling, ecs, and
// cloudwatch clients to the cluster package's NodeGroupAPI/ContainerAPI
// interfaces and the metricsources package's CloudWatchAPI interface.
package awsclients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"

	"github.com/structurely/ecs-autoscaler/cluster"
	"github.com/structurely/ecs-autoscaler/ecserrors"
	"github.com/structurely/ecs-autoscaler/state"
)

// AutoScalingAPI is the subset of *autoscaling.Client this adapter calls.
type AutoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
	SetDesiredCapacity(ctx context.Context, params *autoscaling.SetDesiredCapacityInput, optFns ...func(*autoscaling.Options)) (*autoscaling.SetDesiredCapacityOutput, error)
	TerminateInstanceInAutoScalingGroup(ctx context.Context, params *autoscaling.TerminateInstanceInAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.TerminateInstanceInAutoScalingGroupOutput, error)
}

// NodeGroupClient implements cluster.NodeGroupAPI against a real
// autoscaling group.
type NodeGroupClient struct {
	API AutoScalingAPI
}

var _ cluster.NodeGroupAPI = (*NodeGroupClient)(nil)

// Describe fetches the named autoscaling group's current desired/min/max.
// Fails with NodeGroupUnknown if the group does not exist.
func (c *NodeGroupClient) Describe(ctx context.Context, name string) (state.NodeGroupState, error) {
	out, err := c.API.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{name},
	})
	if err != nil {
		return state.NodeGroupState{}, ecserrors.New(ecserrors.KindNodeGroupUnknown, fmt.Errorf("DescribeAutoScalingGroups %q: %w", name, err), map[string]any{"node_group": name})
	}
	if len(out.AutoScalingGroups) == 0 {
		return state.NodeGroupState{}, ecserrors.New(ecserrors.KindNodeGroupUnknown, fmt.Errorf("autoscaling group %q not found", name), map[string]any{"node_group": name})
	}

	asg := out.AutoScalingGroups[0]
	return state.NodeGroupState{
		Name:    name,
		Desired: int(aws.ToInt32(asg.DesiredCapacity)),
		Min:     int(aws.ToInt32(asg.MinSize)),
		Max:     int(aws.ToInt32(asg.MaxSize)),
	}, nil
}

// UpdateBounds pushes new min/max to the autoscaling group.
func (c *NodeGroupClient) UpdateBounds(ctx context.Context, name string, min, max int) error {
	_, err := c.API.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
		MinSize:              aws.Int32(int32(min)),
		MaxSize:              aws.Int32(int32(max)),
	})
	if err != nil {
		return ecserrors.New(ecserrors.KindNodeGroupUnknown, fmt.Errorf("UpdateAutoScalingGroup %q: %w", name, err), map[string]any{"node_group": name})
	}
	return nil
}

// SetDesiredCapacity grows or shrinks the autoscaling group to desired.
func (c *NodeGroupClient) SetDesiredCapacity(ctx context.Context, name string, desired int) error {
	_, err := c.API.SetDesiredCapacity(ctx, &autoscaling.SetDesiredCapacityInput{
		AutoScalingGroupName: aws.String(name),
		DesiredCapacity:      aws.Int32(int32(desired)),
		HonorCooldown:        aws.Bool(false),
	})
	if err != nil {
		return ecserrors.New(ecserrors.KindNodeGroupUnknown, fmt.Errorf("SetDesiredCapacity %q: %w", name, err), map[string]any{"node_group": name})
	}
	return nil
}

// TerminateInstance terminates ec2InstanceID, optionally decrementing the
// owning group's desired capacity atomically with the termination.
func (c *NodeGroupClient) TerminateInstance(ctx context.Context, ec2InstanceID string, decrementDesired bool) error {
	_, err := c.API.TerminateInstanceInAutoScalingGroup(ctx, &autoscaling.TerminateInstanceInAutoScalingGroupInput{
		InstanceId:                     aws.String(ec2InstanceID),
		ShouldDecrementDesiredCapacity: aws.Bool(decrementDesired),
	})
	if err != nil {
		return ecserrors.New(ecserrors.KindNodeGroupUnknown, fmt.Errorf("TerminateInstanceInAutoScalingGroup %q: %w", ec2InstanceID, err), map[string]any{"instance": ec2InstanceID})
	}
	return nil
}
