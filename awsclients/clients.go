package awsclients

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ecs"

	"github.com/structurely/ecs-autoscaler/ecserrors"
)

// Clients bundles the three generated AWS service clients the scaling
// engine needs, built from a single shared aws.Config so region and
// credential resolution happen exactly once per process.
type Clients struct {
	NodeGroups *NodeGroupClient
	Containers *ContainerClient
	CloudWatch *cloudwatch.Client
}

// NewClients loads the default AWS credential chain, overriding the
// region when region is non-empty, and wires the three service clients.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, ecserrors.New(ecserrors.KindConfigError, fmt.Errorf("loading AWS config: %w", err), nil)
	}

	return &Clients{
		NodeGroups: &NodeGroupClient{API: autoscaling.NewFromConfig(cfg)},
		Containers: &ContainerClient{API: ecs.NewFromConfig(cfg)},
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}, nil
}
