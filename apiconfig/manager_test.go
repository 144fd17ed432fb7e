package apiconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYaml = `
api:
  port: 9090
  request_timeout_seconds: 30
backends:
  - id: "5001"
    host: localhost
    poc_port: 5001
  - id: "5002"
    host: worker-2
    poc_port: 5002
    poc_segment: /poc
stat_test:
  dist_threshold: 0.05
`

func TestLoadConfigBytes(t *testing.T) {
	manager, err := LoadConfigBytes([]byte(testYaml))
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 9090, cfg.Api.Port)
	assert.Equal(t, 30, cfg.Api.RequestTimeoutSeconds)
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "5001", cfg.Backends[0].Id)
	assert.Equal(t, "http://localhost:5001", cfg.Backends[0].PoCUrl())
	assert.Equal(t, "http://worker-2:5002/poc", cfg.Backends[1].PoCUrl())

	// file overrides one stat test field, defaults fill the rest
	assert.Equal(t, 0.05, cfg.StatTest.DistThreshold)
	assert.Equal(t, 0.001, cfg.StatTest.PMismatch)
	assert.Equal(t, 0.01, cfg.StatTest.FraudThreshold)
	assert.Equal(t, 64, cfg.Consensus.Slots)
}

func TestLoadConfigBytesDefaultsOnly(t *testing.T) {
	manager, err := LoadConfigBytes([]byte("{}"))
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 8080, cfg.Api.Port)
	assert.Equal(t, 20, cfg.Api.RequestTimeoutSeconds)
	assert.Equal(t, 5, cfg.Api.HealthSweepSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Backends)
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYaml), 0644))

	t.Setenv("ROUTER_API_PORT", "7000")

	manager, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, manager.GetConfig().Api.Port)
	assert.Len(t, manager.GetBackends(), 2)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigBytesInvalidBackend(t *testing.T) {
	_, err := LoadConfigBytes([]byte(`
backends:
  - id: ""
    host: localhost
    poc_port: 5001
`))
	assert.Error(t, err)
}

func TestValidateBackendBasic(t *testing.T) {
	assert.Empty(t, ValidateBackendBasic(BackendConfig{Id: "a", Host: "h", PoCPort: 80}))

	problems := ValidateBackendBasic(BackendConfig{Id: "", Host: "", PoCPort: 0})
	assert.Len(t, problems, 3)

	problems = ValidateBackendBasic(BackendConfig{Id: "a:b", Host: "h", PoCPort: 80})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "composite")

	problems = ValidateBackendBasic(BackendConfig{Id: "a", Host: "h", PoCPort: 70000})
	assert.Len(t, problems, 1)
}

func TestValidateBackendsDuplicateId(t *testing.T) {
	problems := ValidateBackends([]BackendConfig{
		{Id: "a", Host: "h", PoCPort: 80},
		{Id: "a", Host: "h2", PoCPort: 81},
	})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "duplicate")
}
