package metricsources

import (
	"context"

	"github.com/structurely/ecs-autoscaler/config"
)

// Registry bundles the shipped adapters and merges their results into one
// alias -> value environment for a service's configured metric_sources. It
// is an explicit value rather than a package-level map, per the design
// note against process-wide mutable registries; new adapters register by
// adding a field and a merge loop here rather than a global init().
type Registry struct {
	CloudWatch *CloudWatchAdapter
	ThirdParty *ThirdPartyAdapter
}

// NewRegistry wires the two shipped adapters against the given clients.
func NewRegistry(cw CloudWatchAPI, http HTTPDoer) *Registry {
	return &Registry{
		CloudWatch: &CloudWatchAdapter{Client: cw},
		ThirdParty: &ThirdPartyAdapter{Client: http},
	}
}

// FetchEnvironment runs every configured source for a service and merges
// their aliases into one environment. Fails fast on the first adapter
// error (MetricsUnavailable or UpstreamHTTP), which the caller demotes the
// owning service for.
func (r *Registry) FetchEnvironment(ctx context.Context, sources config.MetricSources) (map[string]float64, error) {
	env := make(map[string]float64)

	for _, src := range sources.CloudWatch {
		vals, err := r.CloudWatch.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		for alias, v := range vals {
			env[alias] = v
		}
	}

	for _, src := range sources.ThirdParty {
		vals, err := r.ThirdParty.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		for alias, v := range vals {
			env[alias] = v
		}
	}

	return env, nil
}
