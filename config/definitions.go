// Package config loads the per-cluster scaling policy from YAML: one file
// per cluster in a directory, named <cluster-name>.yml, with %(NAME)
// environment-variable interpolation applied before parsing.
package config

// Event is a threshold rule: if the evaluated metric expression falls
// within [Min, Max] (both bounds inclusive; a value equal to a bound
// matches), Action is applied as a signed delta to the owning service's
// task count.
type Event struct {
	// Metric is the arithmetic expression evaluated against the service's
	// fetched metric environment (see package expr).
	Metric string `yaml:"metric"`
	// Min is the lower bound of the interval. Absent (nil) means unbounded below.
	Min *float64 `yaml:"min"`
	// Max is the upper bound of the interval. Absent (nil) means unbounded above.
	Max *float64 `yaml:"max"`
	// Action is the signed task-count delta applied when this event matches.
	Action int `yaml:"action"`
}

// Statistic names one requested value from a metric source: Name is the
// source-specific field (a CloudWatch statistic name, or a dotted JSON
// path), Alias is how it is referenced from Event.Metric expressions.
type Statistic struct {
	Alias string `yaml:"alias"`
	Name  string `yaml:"name"`
}

// Dimension is one CloudWatch metric dimension.
type Dimension struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// CloudWatchSource configures one cloud-metrics adapter invocation.
type CloudWatchSource struct {
	MetricName    string      `yaml:"metric_name"`
	Namespace     string      `yaml:"namespace"`
	Dimensions    []Dimension `yaml:"dimensions"`
	PeriodSeconds int         `yaml:"period"`
	Statistics    []Statistic `yaml:"statistics"`
}

// ThirdPartySource configures one HTTP-JSON adapter invocation.
type ThirdPartySource struct {
	URL        string      `yaml:"url"`
	Method     string      `yaml:"method"`
	Payload    string      `yaml:"payload"`
	Statistics []Statistic `yaml:"statistics"`
}

// MetricSources bundles the metric source invocations configured for one
// service, keyed by source name; a service may consult several sources.
type MetricSources struct {
	CloudWatch  []CloudWatchSource `yaml:"cloudwatch"`
	ThirdParty  []ThirdPartySource `yaml:"third_party"`
}

// ServiceDefinition is the declarative policy for one container-orchestration
// service within a cluster: its min/max task bounds and the ordered Events
// that drive task-count changes.
type ServiceDefinition struct {
	Name          string        `yaml:"-"`
	Enabled       bool          `yaml:"enabled"`
	MinTasks      int           `yaml:"min"`
	MaxTasks      int           `yaml:"max"`
	Events        []Event       `yaml:"events"`
	MetricSources MetricSources `yaml:"metric_sources"`
}

// ClusterDefinition is the declarative policy for one cluster: its backing
// node-group bounds, buffer headroom, and the services it scales.
type ClusterDefinition struct {
	Name           string `yaml:"-"`
	Enabled        bool   `yaml:"enabled"`
	AutoscaleGroup string `yaml:"autoscale_group"`
	Min            int    `yaml:"min"`
	Max            int    `yaml:"max"`
	CPUBuffer      int    `yaml:"cpu_buffer"`
	MemBuffer      int    `yaml:"mem_buffer"`

	// Services lists the cluster's service policies in the order they were
	// declared in the "services" YAML mapping. Declared order matters: the
	// Cluster Scaling Coordinator iterates services in this order for both
	// scale-up placement attempts and service-update emission. Load
	// populates Name on each entry from its YAML key.
	Services []*ServiceDefinition `yaml:"-"`
}

// Service looks up a service definition by name, returning nil if absent.
func (c *ClusterDefinition) Service(name string) *ServiceDefinition {
	for _, s := range c.Services {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// DefaultMaxTasks is applied when a ServiceDefinition's YAML omits "max".
const DefaultMaxTasks = 5
