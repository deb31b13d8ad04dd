package awsclients

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAutoScalingAPI struct {
	describeOut *autoscaling.DescribeAutoScalingGroupsOutput
	describeErr error

	updateCalls    []*autoscaling.UpdateAutoScalingGroupInput
	desiredCalls   []*autoscaling.SetDesiredCapacityInput
	terminateCalls []*autoscaling.TerminateInstanceInAutoScalingGroupInput
}

func (f *fakeAutoScalingAPI) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	return f.describeOut, f.describeErr
}

func (f *fakeAutoScalingAPI) UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	f.updateCalls = append(f.updateCalls, params)
	return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
}

func (f *fakeAutoScalingAPI) SetDesiredCapacity(ctx context.Context, params *autoscaling.SetDesiredCapacityInput, optFns ...func(*autoscaling.Options)) (*autoscaling.SetDesiredCapacityOutput, error) {
	f.desiredCalls = append(f.desiredCalls, params)
	return &autoscaling.SetDesiredCapacityOutput{}, nil
}

func (f *fakeAutoScalingAPI) TerminateInstanceInAutoScalingGroup(ctx context.Context, params *autoscaling.TerminateInstanceInAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.TerminateInstanceInAutoScalingGroupOutput, error) {
	f.terminateCalls = append(f.terminateCalls, params)
	return &autoscaling.TerminateInstanceInAutoScalingGroupOutput{}, nil
}

func TestNodeGroupClientDescribe(t *testing.T) {
	api := &fakeAutoScalingAPI{describeOut: &autoscaling.DescribeAutoScalingGroupsOutput{
		AutoScalingGroups: []asgtypes.AutoScalingGroup{
			{DesiredCapacity: aws.Int32(3), MinSize: aws.Int32(1), MaxSize: aws.Int32(10)},
		},
	}}
	client := &NodeGroupClient{API: api}

	ng, err := client.Describe(context.Background(), "prod-asg")
	require.NoError(t, err)
	assert.Equal(t, 3, ng.Desired)
	assert.Equal(t, 1, ng.Min)
	assert.Equal(t, 10, ng.Max)
}

func TestNodeGroupClientDescribeNotFound(t *testing.T) {
	api := &fakeAutoScalingAPI{describeOut: &autoscaling.DescribeAutoScalingGroupsOutput{}}
	client := &NodeGroupClient{API: api}

	_, err := client.Describe(context.Background(), "missing-asg")
	assert.Error(t, err)
}

func TestNodeGroupClientTerminateInstance(t *testing.T) {
	api := &fakeAutoScalingAPI{}
	client := &NodeGroupClient{API: api}

	err := client.TerminateInstance(context.Background(), "i-1234", true)
	require.NoError(t, err)
	require.Len(t, api.terminateCalls, 1)
	assert.Equal(t, "i-1234", aws.ToString(api.terminateCalls[0].InstanceId))
	assert.True(t, aws.ToBool(api.terminateCalls[0].ShouldDecrementDesiredCapacity))
}
