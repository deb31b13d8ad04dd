package main

import (
	"context"
	goflag "flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/structurely/ecs-autoscaler/awsclients"
	"github.com/structurely/ecs-autoscaler/cluster"
	"github.com/structurely/ecs-autoscaler/config"
	"github.com/structurely/ecs-autoscaler/metricsources"
	"github.com/structurely/ecs-autoscaler/run"
)

var (
	configDir = pflag.String("config-dir", "./clusters", "Directory of per-cluster *.yml scaling policies.")
	region    = pflag.String("region", "", "AWS region override. Leave blank to use the default credential chain's region.")
	testRun   = pflag.Bool("test", false, "Run the full decision pipeline without issuing any mutating AWS calls.")
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	pflag.Parse()
	defer klog.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		klog.Warningf("received shutdown signal, cancelling in-flight run")
		cancel()
	}()

	clients, err := awsclients.NewClients(ctx, *region)
	if err != nil {
		klog.Fatalf("failed to build AWS clients: %v", err)
	}
	metrics := metricsources.NewRegistry(clients.CloudWatch, httpDoer())

	opts := run.Options{
		ConfigDir: *configDir,
		TestRun:   *testRun,
		NewCoordinator: func(def *config.ClusterDefinition, dryRun bool) *cluster.Coordinator {
			return &cluster.Coordinator{
				NodeGroups: clients.NodeGroups,
				Containers: clients.Containers,
				Metrics:    metrics,
				DryRun:     dryRun,
			}
		},
	}

	event := ""
	if *testRun {
		event = "TEST_RUN"
	}
	summary, err := run.Handle(ctx, event, opts)
	if err != nil {
		klog.Fatalf("run aborted: %v", err)
	}

	if len(summary.Failed) > 0 {
		klog.Errorf("run %s completed with %d failed cluster(s) out of %d attempted", summary.RunID, len(summary.Failed), len(summary.Results)+len(summary.Failed))
		os.Exit(1)
	}
	klog.Infof("run %s completed: %d cluster(s) scaled", summary.RunID, countScaled(summary))
}

func httpDoer() *http.Client {
	return http.DefaultClient
}

func countScaled(s run.Summary) int {
	n := 0
	for _, r := range s.Results {
		if r.Scaled {
			n++
		}
	}
	return n
}
