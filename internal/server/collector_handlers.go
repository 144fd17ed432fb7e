package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"poc-router/artifacts"
	"poc-router/backendclient"
	"poc-router/logging"
	"poc-router/resultstore"
	"poc-router/validation"
)

// postGeneratedArtifacts ingests a batch of generated artifacts from a
// backend node into the store for the batch's PoC stage.
func (s *Server) postGeneratedArtifacts(ctx echo.Context) error {
	if s.artifactStore == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "artifact store not configured")
	}

	var body artifacts.Batch
	if err := ctx.Bind(&body); err != nil {
		logging.Error("ArtifactBatch-callback. Failed to decode request body", logging.PoC, "error", err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := artifacts.ValidateBatch(body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// Decode check only: malformed vectors are a client error, not stored.
	if body.KDim > 0 {
		for _, a := range body.Artifacts {
			if _, err := validation.DecodeVector(a.VectorB64, body.KDim); err != nil {
				logging.Error("ArtifactBatch-callback. Bad artifact vector", logging.PoC,
					"nonce", a.Nonce, "error", err.Error())
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
		}
	}

	store := s.artifactStore.GetOrCreateStore(body.BlockHeight)
	added, skipped := store.AddBatch(body)
	logging.Debug("ArtifactBatch-callback. Stored", logging.PoC,
		"block_height", body.BlockHeight,
		"public_key", body.PublicKey,
		"added", added, "skipped", skipped,
		"total_in_store", store.Count())

	return ctx.JSON(http.StatusOK, map[string]int{"added": added, "skipped": skipped})
}

// ValidateBatchRequest asks the collector to verify claimed artifacts
// against the authoritative ones received during generation.
type ValidateBatchRequest struct {
	BlockHash   string                       `json:"block_hash"`
	BlockHeight int64                        `json:"block_height"`
	PublicKey   string                       `json:"public_key"`
	NodeId      int                          `json:"node_id"`
	KDim        int                          `json:"k_dim"`
	Nonces      []int64                      `json:"nonces"`
	Artifacts   []backendclient.Artifact     `json:"artifacts"`
	StatTest    *backendclient.StatTestParams `json:"stat_test,omitempty"`
	RequestId   string                       `json:"request_id,omitempty"`
}

// postValidateBatch runs fraud detection locally: the regeneration source
// is the artifact store populated during the generate phase.
func (s *Server) postValidateBatch(ctx echo.Context) error {
	if s.artifactStore == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "artifact store not configured")
	}

	var body ValidateBatchRequest
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	store := s.artifactStore.GetStore(body.BlockHeight)
	if store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no artifacts for block height")
	}

	statTest := body.StatTest
	if statTest == nil {
		statTest = backendclient.DefaultStatTestParams()
	}

	req := validation.Request{
		BlockHash:   body.BlockHash,
		BlockHeight: body.BlockHeight,
		PublicKey:   body.PublicKey,
		NodeId:      body.NodeId,
		KDim:        body.KDim,
		Nonces:      body.Nonces,
		Artifacts:   body.Artifacts,
		StatTest:    *statTest,
	}
	regen := func(ctx context.Context, nonce int64) ([]float32, error) {
		a, err := store.GetByNonce(nonce)
		if err != nil {
			return nil, validation.NewInputError("no stored artifact for nonce %d", nonce)
		}
		return validation.DecodeVector(a.VectorB64, body.KDim)
	}

	result, err := s.detector.Detect(ctx.Request().Context(), req, regen)
	if err != nil {
		var input *validation.InputError
		if errors.As(err, &input) {
			return echo.NewHTTPError(http.StatusBadRequest, input.Message)
		}
		return err
	}

	if s.resultStore != nil && body.RequestId != "" {
		data, err := json.Marshal(result)
		if err == nil {
			if err := s.resultStore.Store(ctx.Request().Context(), body.RequestId, body.BlockHeight, data); err != nil {
				logging.Warn("Failed to persist validation result", logging.ResultStore,
					"request_id", body.RequestId, "error", err.Error())
			}
		}
	}
	return ctx.JSON(http.StatusOK, result)
}

// ValidatedResultBody is the callback from a backend that ran its own
// validation pass.
type ValidatedResultBody struct {
	RequestId   string            `json:"request_id"`
	BlockHeight int64             `json:"block_height"`
	PublicKey   string            `json:"public_key"`
	Result      validation.Result `json:"result"`
}

// postValidatedResult stores a validation verdict reported by a backend.
func (s *Server) postValidatedResult(ctx echo.Context) error {
	if s.resultStore == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "result store not configured")
	}

	var body ValidatedResultBody
	if err := ctx.Bind(&body); err != nil {
		logging.Error("ValidatedResult-callback. Failed to decode request body", logging.PoC, "error", err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.RequestId == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request_id is required")
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if err := s.resultStore.Store(ctx.Request().Context(), body.RequestId, body.BlockHeight, data); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusOK)
}

func (s *Server) getValidatedResult(ctx echo.Context) error {
	if s.resultStore == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "result store not configured")
	}

	data, err := s.resultStore.Retrieve(ctx.Request().Context(), ctx.Param("request_id"))
	if err != nil {
		if errors.Is(err, resultstore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "result not found")
		}
		return err
	}
	return ctx.JSONBlob(http.StatusOK, data)
}
