package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
enabled: true
autoscale_group: %(ASG_NAME)
min: 1
max: 10
cpu_buffer: 100
mem_buffer: 200
services:
  web:
    enabled: true
    min: 2
    max: 8
    events:
      - metric: "cpu"
        min: 50
        action: 1
  worker:
    enabled: true
    min: 1
    events:
      - metric: "queue_depth"
        max: 100
        action: -1
`

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoadDirExpandsEnvAndPreservesOrder(t *testing.T) {
	t.Setenv("ASG_NAME", "prod-asg")
	dir := writeConfigDir(t, map[string]string{"prod.yml": sampleYAML})

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Contains(t, defs, "prod")

	def := defs["prod"]
	assert.Equal(t, "prod-asg", def.AutoscaleGroup)
	assert.True(t, def.Enabled)
	assert.Equal(t, 1, def.Min)
	assert.Equal(t, 10, def.Max)

	require.Len(t, def.Services, 2)
	assert.Equal(t, "web", def.Services[0].Name)
	assert.Equal(t, "worker", def.Services[1].Name)
	assert.Equal(t, 8, def.Services[0].MaxTasks)
	assert.Equal(t, DefaultMaxTasks, def.Services[1].MaxTasks, "unset max falls back to the default")
}

func TestLoadDirUnsetEnvVarIsConfigError(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{"prod.yml": sampleYAML})

	_, err := LoadDir(dir)
	require.Error(t, err)
}

func TestLoadDirIgnoresNonYAMLFiles(t *testing.T) {
	t.Setenv("ASG_NAME", "prod-asg")
	dir := writeConfigDir(t, map[string]string{
		"prod.yml":    sampleYAML,
		"README.md":   "not a cluster file",
		".gitignore":  "*.log",
	})

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestClusterDefinitionServiceLookup(t *testing.T) {
	def := &ClusterDefinition{Services: []*ServiceDefinition{{Name: "a"}, {Name: "b"}}}

	assert.Equal(t, "b", def.Service("b").Name)
	assert.Nil(t, def.Service("missing"))
}
