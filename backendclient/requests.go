package backendclient

// Request/response types for the per-backend PoC API
// (POST /api/v1/pow/init/generate, /stop, /generate, GET /status, /generate/{id}).

// PoCParams contains model-specific parameters for PoC generation/validation.
type PoCParams struct {
	Model  string `json:"model"`
	SeqLen int64  `json:"seq_len"`
	KDim   int    `json:"k_dim,omitempty"`
}

// InitGenerateRequest is the body for /api/v1/pow/init/generate.
// GroupId and NGroups are injected by the router: backend i of n generates
// the i-th slice of the nonce space.
type InitGenerateRequest struct {
	BlockHash   string    `json:"block_hash"`
	BlockHeight int64     `json:"block_height"`
	PublicKey   string    `json:"public_key"`
	NodeId      int       `json:"node_id"`
	NodeCount   int       `json:"node_count"`
	BatchSize   int       `json:"batch_size,omitempty"`
	Params      PoCParams `json:"params"`
	URL         string    `json:"url,omitempty"`
	GroupId     int       `json:"group_id"`
	NGroups     int       `json:"n_groups"`
}

// Artifact is a single proof-of-compute artifact.
type Artifact struct {
	Nonce     int64  `json:"nonce"`
	VectorB64 string `json:"vector_b64"` // base64-encoded fp16 little-endian vector
}

// ValidationPayload carries the claimed artifacts a validator wants re-checked.
type ValidationPayload struct {
	Artifacts []Artifact `json:"artifacts"`
}

// StatTestParams tunes the fraud decision on the backend.
type StatTestParams struct {
	DistThreshold  float64 `json:"dist_threshold,omitempty"`
	PMismatch      float64 `json:"p_mismatch,omitempty"`
	FraudThreshold float64 `json:"fraud_threshold,omitempty"`
}

// Default stat test parameter values, matching the backend protocol defaults.
const (
	DefaultDistThreshold  = 0.02
	DefaultPMismatch      = 0.001
	DefaultFraudThreshold = 0.01
)

// DefaultStatTestParams returns the default statistical test parameters.
func DefaultStatTestParams() *StatTestParams {
	return &StatTestParams{
		DistThreshold:  DefaultDistThreshold,
		PMismatch:      DefaultPMismatch,
		FraudThreshold: DefaultFraudThreshold,
	}
}

// GenerateRequest is the body for /api/v1/pow/generate. Used both for
// generation (nonces only) and validation (with Validation.Artifacts).
type GenerateRequest struct {
	BlockHash   string             `json:"block_hash"`
	BlockHeight int64              `json:"block_height"`
	PublicKey   string             `json:"public_key"`
	NodeId      int                `json:"node_id"`
	NodeCount   int                `json:"node_count"`
	Nonces      []int64            `json:"nonces"`
	Params      PoCParams          `json:"params"`
	BatchSize   int                `json:"batch_size,omitempty"`
	Wait        bool               `json:"wait,omitempty"`
	URL         string             `json:"url,omitempty"`
	Validation  *ValidationPayload `json:"validation,omitempty"`
	StatTest    *StatTestParams    `json:"stat_test,omitempty"`
}

// Ack is the minimal success response for init/generate and stop.
type Ack struct {
	Status string `json:"status"`
}

// StatusResponse is returned by /api/v1/pow/status.
type StatusResponse struct {
	Status string `json:"status"` // "IDLE", "GENERATING", ...
}

// Backend busy-state strings as the PoC API reports them.
const (
	StatusIdle       = "IDLE"
	StatusGenerating = "GENERATING"
)
