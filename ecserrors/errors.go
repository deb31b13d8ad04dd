// Package ecserrors defines the typed error kinds propagated by the
// scaling engine, per the error handling design: service-local errors
// demote a service to non-actionable, cluster-level errors abort that
// cluster only, and config errors abort the run before any cluster is
// touched.
package ecserrors

import "fmt"

// Kind classifies an error for the propagation policy the coordinators
// apply; callers should switch on Kind rather than string-match messages.
type Kind string

const (
	// KindClusterUnknown means a cluster name was not found among the
	// clusters the container service reports. Fatal for that cluster only.
	KindClusterUnknown Kind = "ClusterUnknown"
	// KindNodeGroupUnknown means an autoscaling-group name referenced by a
	// ClusterDefinition does not exist. Fatal for that cluster only.
	KindNodeGroupUnknown Kind = "NodeGroupUnknown"
	// KindMissingResource means a node descriptor lacks CPU or MEMORY on
	// either its registered or remaining side.
	KindMissingResource Kind = "MissingResource"
	// KindMetricsUnavailable means a cloud-metrics fetch returned no
	// datapoints for the requested window. Demotes one service.
	KindMetricsUnavailable Kind = "MetricsUnavailable"
	// KindUpstreamHTTP means a third-party HTTP metric source answered
	// with a non-200 status. Demotes one service.
	KindUpstreamHTTP Kind = "UpstreamHTTP"
	// KindExpressionError means a metric expression was malformed or
	// divided by zero. Demotes one service.
	KindExpressionError Kind = "ExpressionError"
	// KindConfigError means configuration failed to load: an unset
	// %(NAME) environment variable or unparseable YAML. Aborts the run.
	KindConfigError Kind = "ConfigError"
)

// Error wraps an underlying cause with a Kind and free-form context fields
// used for structured logging (namespace/metric/dimensions/period/statistics
// for metrics errors, status/url for HTTP errors).
type Error struct {
	Kind    Kind
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind wrapping cause, with optional
// structured context (namespace, metric, dimensions, and so on).
func New(kind Kind, cause error, context map[string]any) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ServiceLocal reports whether err demotes a single service to
// non-actionable rather than aborting the whole cluster.
func ServiceLocal(err error) bool {
	return Is(err, KindMetricsUnavailable) || Is(err, KindUpstreamHTTP) || Is(err, KindExpressionError)
}

// ClusterFatal reports whether err is fatal for the owning cluster only.
func ClusterFatal(err error) bool {
	return Is(err, KindClusterUnknown) || Is(err, KindNodeGroupUnknown)
}
