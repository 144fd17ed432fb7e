package apiconfig

import (
	"fmt"
	"strings"
)

type Config struct {
	Api       ApiConfig       `koanf:"api" json:"api"`
	Backends  []BackendConfig `koanf:"backends" json:"backends"`
	StatTest  StatTestConfig  `koanf:"stat_test" json:"stat_test"`
	Consensus ConsensusConfig `koanf:"consensus" json:"consensus"`
	Log       LogConfig       `koanf:"log" json:"log"`
}

type ApiConfig struct {
	Port                  int    `koanf:"port" json:"port"`
	PoCCallbackUrl        string `koanf:"poc_callback_url" json:"poc_callback_url"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds" json:"request_timeout_seconds"`
	HealthSweepSeconds    int    `koanf:"health_sweep_seconds" json:"health_sweep_seconds"`
	ResultDbPath          string `koanf:"result_db_path" json:"result_db_path"`
	ResultFileDir         string `koanf:"result_file_dir" json:"result_file_dir"`
}

// BackendConfig describes one inference backend the router can place
// verification traffic on. Id doubles as the backend half of composite
// request ids, so it must be stable across restarts.
type BackendConfig struct {
	Id         string `koanf:"id" json:"id"`
	Host       string `koanf:"host" json:"host"`
	PoCPort    int    `koanf:"poc_port" json:"poc_port"`
	PoCSegment string `koanf:"poc_segment" json:"poc_segment"`
}

type StatTestConfig struct {
	DistThreshold  float64 `koanf:"dist_threshold" json:"dist_threshold"`
	PMismatch      float64 `koanf:"p_mismatch" json:"p_mismatch"`
	FraudThreshold float64 `koanf:"fraud_threshold" json:"fraud_threshold"`
}

type ConsensusConfig struct {
	Slots int `koanf:"slots" json:"slots"`
}

type LogConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// PoCUrl returns the base URL for the backend's PoC API.
func (b BackendConfig) PoCUrl() string {
	return fmt.Sprintf("http://%s:%d%s", b.Host, b.PoCPort, b.PoCSegment)
}

// ValidateBackendBasic validates the fields of a single BackendConfig.
// Returns a description per problem, or nil if the entry is valid.
func ValidateBackendBasic(backend BackendConfig) []string {
	var errors []string

	if strings.TrimSpace(backend.Id) == "" {
		errors = append(errors, "backend id is required and cannot be empty")
	}

	if strings.Contains(backend.Id, ":") {
		errors = append(errors, "backend id cannot contain ':' (reserved for composite request ids)")
	}

	if strings.TrimSpace(backend.Host) == "" {
		errors = append(errors, "host is required and cannot be empty")
	}

	if backend.PoCPort <= 0 || backend.PoCPort > 65535 {
		errors = append(errors, fmt.Sprintf("poc_port must be between 1 and 65535, got %d", backend.PoCPort))
	}

	return errors
}

// ValidateBackends validates all backend entries and checks for duplicate ids.
func ValidateBackends(backends []BackendConfig) []string {
	var errors []string
	seen := make(map[string]struct{}, len(backends))

	for i, backend := range backends {
		for _, msg := range ValidateBackendBasic(backend) {
			errors = append(errors, fmt.Sprintf("backends[%d]: %s", i, msg))
		}
		if _, dup := seen[backend.Id]; dup {
			errors = append(errors, fmt.Sprintf("backends[%d]: duplicate backend id %q", i, backend.Id))
		}
		seen[backend.Id] = struct{}{}
	}

	return errors
}
