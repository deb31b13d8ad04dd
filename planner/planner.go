// Package planner decides, per service, a desired task count and the
// signed delta against the current count, per the strict rule ordering in
// the scaling policy: min/max clamps first, then the ordered Events.
package planner

import (
	"context"
	"errors"

	"k8s.io/klog/v2"

	"github.com/structurely/ecs-autoscaler/config"
	"github.com/structurely/ecs-autoscaler/expr"
	"github.com/structurely/ecs-autoscaler/metricsources"
)

// Plan evaluates def's rules against currentTasks and returns the desired
// task count, the signed diff, and whether the coordinator should act on
// this service at all.
//
// Rule order:
//  1. currentTasks < MinTasks: clamp up to MinTasks. diff = MinTasks - current (> 0).
//  2. currentTasks > MaxTasks: clamp down to MaxTasks. diff = current - MaxTasks
//     (positive, not desired-current) — a deliberately preserved legacy sign
//     convention; see DESIGN.md.
//  3. Otherwise, walk Events in order; the first one that matches commits,
//     even if its net diff is zero (a zero Action) — a matching event only
//     re-continues the scan when currentTasks already sits at the exact
//     boundary the event's candidate would clamp to.
//  4. No event matches: no-act.
//
// A service whose event expression references a metric alias absent from
// the fetched environment is skipped entirely (no-act, no error) rather
// than aborting the run; a malformed expression or division by zero
// instead returns an *ecserrors.Error of KindExpressionError so the caller
// can demote just this service while logging the cause.
func Plan(ctx context.Context, def *config.ServiceDefinition, currentTasks int, registry *metricsources.Registry) (desired, diff int, shouldAct bool, err error) {
	if currentTasks < def.MinTasks {
		return def.MinTasks, def.MinTasks - currentTasks, true, nil
	}
	if currentTasks > def.MaxTasks {
		return def.MaxTasks, currentTasks - def.MaxTasks, true, nil
	}

	if len(def.Events) == 0 {
		return currentTasks, 0, false, nil
	}

	env, err := registry.FetchEnvironment(ctx, def.MetricSources)
	if err != nil {
		return 0, 0, false, err
	}

	for i, ev := range def.Events {
		metric, evalErr := expr.Evaluate(ev.Metric, expr.Environment(env))
		if evalErr != nil {
			var absent *expr.AbsentAliasError
			if errors.As(evalErr, &absent) {
				klog.V(3).Infof("service %s: event %d skipped, alias %q absent from fetched environment", def.Name, i, absent.Alias)
				return currentTasks, 0, false, nil
			}
			return 0, 0, false, evalErr
		}

		if ev.Max != nil && metric > *ev.Max {
			klog.V(3).Infof("service %s: event %d skipped, metric %v exceeds max %v", def.Name, i, metric, *ev.Max)
			continue
		}
		if ev.Min != nil && metric < *ev.Min {
			klog.V(3).Infof("service %s: event %d skipped, metric %v below min %v", def.Name, i, metric, *ev.Min)
			continue
		}

		candidate := currentTasks + ev.Action
		desired := candidate
		if candidate < def.MinTasks {
			if currentTasks == def.MinTasks {
				klog.V(3).Infof("service %s: event %d skipped, already at min %d", def.Name, i, def.MinTasks)
				continue
			}
			desired = def.MinTasks
		} else if candidate > def.MaxTasks {
			if currentTasks == def.MaxTasks {
				klog.V(3).Infof("service %s: event %d skipped, already at max %d", def.Name, i, def.MaxTasks)
				continue
			}
			desired = def.MaxTasks
		}

		return desired, desired - currentTasks, true, nil
	}

	return currentTasks, 0, false, nil
}
