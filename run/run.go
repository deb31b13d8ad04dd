// Package run implements the Run Coordinator: the top-level entry point
// that loads every cluster definition, iterates the enabled ones, and
// isolates a single cluster's failure from the rest of the run.
package run

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/structurely/ecs-autoscaler/cluster"
	"github.com/structurely/ecs-autoscaler/config"
	"github.com/structurely/ecs-autoscaler/ecserrors"
)

// testRunMarker is the event payload that marks an invocation as a dry
// run, matching the Lambda handler's "event == 'TEST_RUN'" check.
const testRunMarker = "TEST_RUN"

// Options configures one invocation of Run.
type Options struct {
	// ConfigDir holds the per-cluster *.yml policy files.
	ConfigDir string
	// TestRun forces dry-run mode regardless of the invocation payload,
	// mirroring the CLI's --test flag; Handle also sets this from the
	// event payload for the Lambda-style invocation surface.
	TestRun bool
	// NewCoordinator builds the per-cluster coordinator wired against a
	// specific cluster's cloud clients. Supplied by the caller (the CLI
	// entry point or the Lambda handler) so this package stays free of
	// AWS SDK concerns.
	NewCoordinator func(def *config.ClusterDefinition, dryRun bool) *cluster.Coordinator
}

// Summary reports one invocation's outcome across every cluster attempted.
type Summary struct {
	RunID   string
	Results []cluster.Result
	// Failed maps cluster name to the error that aborted it. A cluster
	// present here contributes no Result.
	Failed map[string]error
}

// Handle is the event-driven entry point mirroring the real invocation
// surface: an opaque event and a context, exactly as the Lambda handler
// takes an event and a context it otherwise ignores. If event equals
// "TEST_RUN" the run executes as a dry run, the same switch the CLI's
// --test flag drives through Options.TestRun.
func Handle(ctx context.Context, event string, opts Options) (Summary, error) {
	if event == testRunMarker {
		opts.TestRun = true
	}
	return Run(ctx, opts)
}

// Run loads every cluster definition from opts.ConfigDir and drives each
// enabled one through its Coordinator in turn. A ClusterUnknown,
// NodeGroupUnknown, or any other per-cluster error is logged and recorded
// in Summary.Failed; it never aborts the remaining clusters. A ConfigError
// loading the definitions themselves aborts the whole run, since no
// cluster can be safely touched without a parsed policy.
func Run(ctx context.Context, opts Options) (Summary, error) {
	runID := uuid.NewString()
	summary := Summary{RunID: runID, Failed: make(map[string]error)}

	defs, err := config.LoadDir(opts.ConfigDir)
	if err != nil {
		klog.Errorf("run %s: failed to load cluster definitions: %v", runID, err)
		return summary, err
	}

	names := orderedClusterNames(defs)
	klog.Infof("run %s: loaded %d cluster definitions, %d enabled", runID, len(defs), countEnabled(defs))

	for _, name := range names {
		def := defs[name]
		if !def.Enabled {
			klog.V(2).Infof("run %s: cluster %s is disabled, skipping", runID, name)
			continue
		}

		dryRun := opts.TestRun
		coordinator := opts.NewCoordinator(def, dryRun)

		klog.Infof("run %s: starting cluster %s (dry_run=%v)", runID, name, dryRun)
		result, err := coordinator.RunCluster(ctx, def)
		if err != nil {
			logClusterFailure(runID, name, err)
			summary.Failed[name] = err
			continue
		}

		klog.Infof("run %s: cluster %s finished in state %s (scaled=%v)", runID, name, result.FinalState, result.Scaled)
		summary.Results = append(summary.Results, result)
	}

	return summary, nil
}

func logClusterFailure(runID, name string, err error) {
	if ecserrors.ClusterFatal(err) {
		klog.Warningf("run %s: cluster %s aborted: %v", runID, name, err)
		return
	}
	klog.Errorf("run %s: cluster %s aborted on unexpected error: %v", runID, name, err)
}

func orderedClusterNames(defs map[string]*config.ClusterDefinition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func countEnabled(defs map[string]*config.ClusterDefinition) int {
	n := 0
	for _, d := range defs {
		if d.Enabled {
			n++
		}
	}
	return n
}
