package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/structurely/ecs-autoscaler/ecserrors"
)

var envTokenPattern = regexp.MustCompile(`%\(([A-Za-z_][A-Za-z0-9_]*)\)`)

// expandEnv substitutes every %(NAME) occurrence in raw with the value of
// the environment variable NAME. An unset variable is a hard ConfigError.
func expandEnv(raw []byte) ([]byte, error) {
	var firstErr error
	expanded := envTokenPattern.ReplaceAllStringFunc(string(raw), func(token string) string {
		if firstErr != nil {
			return token
		}
		name := envTokenPattern.FindStringSubmatch(token)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			firstErr = ecserrors.New(ecserrors.KindConfigError,
				fmt.Errorf("environment variable %q referenced via %%(...) is not set", name), nil)
			return token
		}
		return val
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return []byte(expanded), nil
}

// LoadDir reads every <cluster-name>.yml file in dir and returns one
// ClusterDefinition per file, keyed by cluster name (the filename without
// extension). Any unset %(NAME) reference or YAML parse failure aborts the
// whole load with a ConfigError; no partial result is returned.
func LoadDir(dir string) (map[string]*ClusterDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ecserrors.New(ecserrors.KindConfigError, fmt.Errorf("reading config dir %q: %w", dir, err), nil)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	defs := make(map[string]*ClusterDefinition, len(names))
	for _, name := range names {
		clusterName := strings.TrimSuffix(name, ".yml")
		def, err := loadOne(filepath.Join(dir, name), clusterName)
		if err != nil {
			return nil, err
		}
		defs[clusterName] = def
	}
	return defs, nil
}

// rawClusterDefinition mirrors ClusterDefinition but decodes "services" as
// an ordered yaml.MapSlice so declared order survives, since a plain Go map
// would not preserve the order services appear in the YAML file.
type rawClusterDefinition struct {
	Enabled        bool          `yaml:"enabled"`
	AutoscaleGroup string        `yaml:"autoscale_group"`
	Min            int           `yaml:"min"`
	Max            int           `yaml:"max"`
	CPUBuffer      int           `yaml:"cpu_buffer"`
	MemBuffer      int           `yaml:"mem_buffer"`
	Services       yaml.MapSlice `yaml:"services"`
}

func loadOne(path, clusterName string) (*ClusterDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ecserrors.New(ecserrors.KindConfigError, fmt.Errorf("reading %q: %w", path, err), nil)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, err
	}

	var rawDef rawClusterDefinition
	if err := yaml.Unmarshal(expanded, &rawDef); err != nil {
		return nil, ecserrors.New(ecserrors.KindConfigError, fmt.Errorf("parsing %q: %w", path, err), nil)
	}

	def := &ClusterDefinition{
		Name:           clusterName,
		Enabled:        rawDef.Enabled,
		AutoscaleGroup: rawDef.AutoscaleGroup,
		Min:            rawDef.Min,
		Max:            rawDef.Max,
		CPUBuffer:      rawDef.CPUBuffer,
		MemBuffer:      rawDef.MemBuffer,
		Services:       make([]*ServiceDefinition, 0, len(rawDef.Services)),
	}

	for _, item := range rawDef.Services {
		svcName, ok := item.Key.(string)
		if !ok {
			return nil, ecserrors.New(ecserrors.KindConfigError,
				fmt.Errorf("parsing %q: non-string service key %v", path, item.Key), nil)
		}

		valueBytes, err := yaml.Marshal(item.Value)
		if err != nil {
			return nil, ecserrors.New(ecserrors.KindConfigError, fmt.Errorf("parsing %q: re-encoding service %q: %w", path, svcName, err), nil)
		}

		svc := &ServiceDefinition{Name: svcName}
		if err := yaml.Unmarshal(valueBytes, svc); err != nil {
			return nil, ecserrors.New(ecserrors.KindConfigError, fmt.Errorf("parsing %q: service %q: %w", path, svcName, err), nil)
		}
		svc.Name = svcName
		if svc.MaxTasks == 0 {
			svc.MaxTasks = DefaultMaxTasks
		}
		def.Services = append(def.Services, svc)
	}

	return def, nil
}
