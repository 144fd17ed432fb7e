package validation

import (
	"context"

	"github.com/shopspring/decimal"

	"poc-router/backendclient"
	"poc-router/logging"
)

// RegenerateFunc reproduces the authoritative vector for a nonce. The
// identity fields (public key, block hash, node id) are bound by the
// caller before handing the function to the detector.
type RegenerateFunc func(ctx context.Context, nonce int64) ([]float32, error)

// Request carries the claimed artifacts to check against regeneration.
type Request struct {
	BlockHash   string
	BlockHeight int64
	PublicKey   string
	NodeId      int
	NodeCount   int
	KDim        int
	Nonces      []int64
	Artifacts   []backendclient.Artifact
	StatTest    backendclient.StatTestParams
}

// Result is the verdict on one claimed artifact set.
type Result struct {
	NTotal         int     `json:"n_total"`
	NMismatch      int     `json:"n_mismatch"`
	MismatchNonces []int64 `json:"mismatch_nonces"`
	PValue         float64 `json:"p_value"`
	FraudDetected  bool    `json:"fraud_detected"`
}

// Detector compares claimed artifacts against authoritative regeneration
// and applies a one-sided binomial test to the mismatch count. It holds
// no state across calls.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Detect regenerates every nonce's vector, marks mismatches by L2 distance
// against DistThreshold, and declares fraud when the exact binomial tail
// probability of the observed mismatch count under PMismatch falls below
// FraudThreshold.
func (d *Detector) Detect(ctx context.Context, req Request, regen RegenerateFunc) (*Result, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	claimed := make(map[int64][]float32, len(req.Artifacts))
	for _, a := range req.Artifacts {
		vec, err := DecodeVector(a.VectorB64, req.KDim)
		if err != nil {
			return nil, NewInputError("artifact nonce %d: %s", a.Nonce, err.Error())
		}
		claimed[a.Nonce] = vec
	}

	result := &Result{
		NTotal:         len(req.Nonces),
		MismatchNonces: []int64{},
	}
	for _, nonce := range req.Nonces {
		authoritative, err := regen(ctx, nonce)
		if err != nil {
			return nil, err
		}
		if len(authoritative) != req.KDim {
			return nil, NewInputError("regenerated vector for nonce %d has %d elements, expected %d", nonce, len(authoritative), req.KDim)
		}
		dist := L2Distance(claimed[nonce], authoritative)
		if dist > req.StatTest.DistThreshold {
			result.NMismatch++
			result.MismatchNonces = append(result.MismatchNonces, nonce)
		}
	}

	pValue, err := BinomialPValue(result.NMismatch, result.NTotal, decimal.NewFromFloat(req.StatTest.PMismatch), pValuePrecision)
	if err != nil {
		return nil, err
	}
	result.PValue, _ = pValue.Float64()
	result.FraudDetected = pValue.LessThan(decimal.NewFromFloat(req.StatTest.FraudThreshold))

	if result.FraudDetected {
		logging.Warn("Fraud detected in artifact batch", logging.Validation,
			"public_key", req.PublicKey, "n_total", result.NTotal,
			"n_mismatch", result.NMismatch, "p_value", result.PValue)
	} else {
		logging.Debug("Artifact batch validated", logging.Validation,
			"public_key", req.PublicKey, "n_total", result.NTotal,
			"n_mismatch", result.NMismatch)
	}
	return result, nil
}

// checkRequest enforces the nonce/artifact set-equality precondition.
func checkRequest(req Request) error {
	if req.KDim <= 0 {
		return NewInputError("k_dim must be positive")
	}
	if len(req.Nonces) != len(req.Artifacts) {
		return NewInputError("nonce count %d does not match artifact count %d", len(req.Nonces), len(req.Artifacts))
	}
	if len(req.Nonces) == 0 {
		return NewInputError("empty validation request")
	}
	nonceSet := make(map[int64]struct{}, len(req.Nonces))
	for _, n := range req.Nonces {
		nonceSet[n] = struct{}{}
	}
	seen := make(map[int64]struct{}, len(req.Artifacts))
	for _, a := range req.Artifacts {
		if _, ok := nonceSet[a.Nonce]; !ok {
			return NewInputError("artifact nonce %d not in nonce list", a.Nonce)
		}
		if _, dup := seen[a.Nonce]; dup {
			return NewInputError("duplicate artifact nonce %d", a.Nonce)
		}
		seen[a.Nonce] = struct{}{}
	}
	if len(nonceSet) != len(seen) {
		return NewInputError("nonce list and artifact set differ")
	}
	return nil
}
