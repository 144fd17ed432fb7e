package powrouter

import (
	"context"

	"github.com/pkg/errors"

	"poc-router/backendclient"
	"poc-router/backendpool"
	"poc-router/logging"
)

// Aggregate status verdicts reported by Status.
const (
	AggregateIdle       = "IDLE"
	AggregateGenerating = "GENERATING"
	AggregateMixed      = "MIXED"
	AggregateNoBackends = "NO_BACKENDS"
)

// BackendResult is the per-backend outcome of a fan-out operation.
type BackendResult struct {
	Backend string      `json:"backend"`
	Body    interface{} `json:"body,omitempty"`
}

// BackendError is a per-backend failure entry. Fan-out failures are
// reported, never fatal on their own.
type BackendError struct {
	Backend string `json:"backend"`
	Error   string `json:"error"`
}

// FanoutResponse aggregates a fan-out across the healthy backend set.
type FanoutResponse struct {
	Status   string          `json:"status"`
	Backends []string        `json:"backends"`
	NGroups  int             `json:"n_groups,omitempty"`
	Results  []BackendResult `json:"results"`
	Errors   []BackendError  `json:"errors"`
}

// BackendStatus is one backend's reported work state.
type BackendStatus struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
}

// StatusResult is the aggregated status verdict.
type StatusResult struct {
	Status   string          `json:"status"`
	Backends []BackendStatus `json:"backends"`
}

// Router implements the verification protocol over a pool of backends.
// It keeps no per-request state beyond the pool; affinity across polls is
// carried entirely by composite request ids.
type Router struct {
	pool *backendpool.Pool
}

func NewRouter(pool *backendpool.Pool) *Router {
	return &Router{pool: pool}
}

// InitGenerate starts generation on every healthy backend concurrently.
// Backend i of n is told to cover 1/n of the nonce space through the
// injected group fields. Succeeds if at least one backend accepts.
func (r *Router) InitGenerate(ctx context.Context, req backendclient.InitGenerateRequest) (*FanoutResponse, error) {
	backends := r.pool.HealthyBackends()
	if len(backends) == 0 {
		return nil, backendpool.ErrNoBackendsAvailable
	}

	n := len(backends)
	resp := newFanoutResponse(backends, n)
	out := make(chan fanoutOutcome, n)
	for i, b := range backends {
		groupReq := req
		groupReq.GroupId = i
		groupReq.NGroups = n
		go func(b *backendpool.Backend, groupReq backendclient.InitGenerateRequest) {
			ack, err := b.Client.InitGenerate(ctx, groupReq)
			out <- fanoutOutcome{backend: b.Id, body: ack, err: err}
		}(b, groupReq)
	}
	resp.collect(out, n)

	if len(resp.Results) == 0 {
		logging.Error("Init generate rejected by every backend", logging.PoC,
			"backends", n, "block_height", req.BlockHeight)
		return resp, ErrAllBackendsFailed
	}
	logging.Info("Init generate dispatched", logging.PoC,
		"backends", n, "accepted", len(resp.Results), "failed", len(resp.Errors))
	return resp, nil
}

// Stop signals every healthy backend to stop generating. Always best-effort:
// individual failures are collected, the call itself never fails.
func (r *Router) Stop(ctx context.Context) (*FanoutResponse, error) {
	backends := r.pool.HealthyBackends()
	resp := newFanoutResponse(backends, 0)
	if len(backends) == 0 {
		return resp, nil
	}

	out := make(chan fanoutOutcome, len(backends))
	for _, b := range backends {
		go func(b *backendpool.Backend) {
			ack, err := b.Client.Stop(ctx)
			out <- fanoutOutcome{backend: b.Id, body: ack, err: err}
		}(b)
	}
	resp.collect(out, len(backends))

	if len(resp.Errors) > 0 {
		logging.Warn("Stop failed on some backends", logging.PoC,
			"failed", len(resp.Errors), "total", len(backends))
	}
	return resp, nil
}

// Status queries every healthy backend and folds the answers into a single
// verdict: GENERATING if all generate, IDLE if all idle, MIXED otherwise.
func (r *Router) Status(ctx context.Context) (*StatusResult, error) {
	backends := r.pool.HealthyBackends()
	if len(backends) == 0 {
		return &StatusResult{Status: AggregateNoBackends, Backends: []BackendStatus{}}, nil
	}

	type statusOutcome struct {
		backend string
		status  string
	}
	out := make(chan statusOutcome, len(backends))
	for _, b := range backends {
		go func(b *backendpool.Backend) {
			resp, err := b.Client.Status(ctx)
			if err != nil {
				out <- statusOutcome{backend: b.Id, status: "ERROR"}
				return
			}
			out <- statusOutcome{backend: b.Id, status: resp.Status}
		}(b)
	}

	result := &StatusResult{Backends: make([]BackendStatus, 0, len(backends))}
	allGenerating := true
	allIdle := true
	for i := 0; i < len(backends); i++ {
		o := <-out
		result.Backends = append(result.Backends, BackendStatus{Backend: o.backend, Status: o.status})
		if o.status != backendclient.StatusGenerating {
			allGenerating = false
		}
		if o.status != backendclient.StatusIdle {
			allIdle = false
		}
	}

	switch {
	case allGenerating:
		result.Status = AggregateGenerating
	case allIdle:
		result.Status = AggregateIdle
	default:
		result.Status = AggregateMixed
	}
	return result, nil
}

// Generate routes a generate-or-validate request to a single backend.
// A queued response gets its inner request id rewritten into composite
// form so later polls reach the same backend.
func (r *Router) Generate(ctx context.Context, req backendclient.GenerateRequest) (*backendclient.GenerateResponse, error) {
	if req.Validation != nil {
		if err := checkValidationPreconditions(req.Nonces, req.Validation.Artifacts); err != nil {
			return nil, err
		}
	}

	backend, err := r.pool.Acquire()
	if err != nil {
		return nil, err
	}
	defer r.pool.Release(backend.Id)

	resp, err := backend.Client.Generate(ctx, req)
	if err != nil {
		var upstream *backendclient.UpstreamError
		if errors.As(err, &upstream) {
			return nil, err
		}
		logging.Error("Generate failed on backend", logging.PoC,
			"backend", backend.Id, "error", err.Error())
		return nil, errors.Wrapf(ErrAllBackendsFailed, "backend %s: %v", backend.Id, err)
	}

	if resp.Status == backendclient.StatusQueued && resp.RequestId != "" {
		resp.SetRequestId(BuildRequestId(backend.Id, resp.RequestId))
	}
	return resp, nil
}

// PollResult resolves a composite request id and forwards the poll to the
// backend that owns the inner id. The response's id is rewritten back to
// composite form so affinity stays invisible to the caller.
func (r *Router) PollResult(ctx context.Context, compositeId string) (*backendclient.GenerateResponse, error) {
	backendId, innerId, err := ParseRequestId(compositeId)
	if err != nil {
		return nil, err
	}
	backend := r.pool.Get(backendId)
	if backend == nil {
		return nil, NewBadRequestError("invalid backend reference")
	}

	resp, err := backend.Client.GetGenerateResult(ctx, innerId)
	if err != nil {
		var upstream *backendclient.UpstreamError
		if errors.As(err, &upstream) {
			return nil, err
		}
		logging.Error("Result poll failed on backend", logging.PoC,
			"backend", backend.Id, "error", err.Error())
		return nil, errors.Wrapf(ErrAllBackendsFailed, "backend %s: %v", backend.Id, err)
	}
	resp.SetRequestId(compositeId)
	return resp, nil
}

// checkValidationPreconditions enforces that the nonce list and the claimed
// artifact list refer to the same nonce set.
func checkValidationPreconditions(nonces []int64, artifacts []backendclient.Artifact) error {
	if len(nonces) != len(artifacts) {
		return NewBadRequestError("nonce and artifact counts differ")
	}
	nonceSet := make(map[int64]struct{}, len(nonces))
	for _, n := range nonces {
		nonceSet[n] = struct{}{}
	}
	artifactSet := make(map[int64]struct{}, len(artifacts))
	for _, a := range artifacts {
		if _, ok := nonceSet[a.Nonce]; !ok {
			return NewBadRequestError("artifact nonce not in nonce list")
		}
		artifactSet[a.Nonce] = struct{}{}
	}
	if len(nonceSet) != len(artifactSet) {
		return NewBadRequestError("nonce and artifact sets differ")
	}
	return nil
}

type fanoutOutcome struct {
	backend string
	body    interface{}
	err     error
}

func newFanoutResponse(backends []*backendpool.Backend, nGroups int) *FanoutResponse {
	ids := make([]string, len(backends))
	for i, b := range backends {
		ids[i] = b.Id
	}
	return &FanoutResponse{
		Status:   "OK",
		Backends: ids,
		NGroups:  nGroups,
		Results:  []BackendResult{},
		Errors:   []BackendError{},
	}
}

// collect drains n outcomes in completion order.
func (r *FanoutResponse) collect(out <-chan fanoutOutcome, n int) {
	for i := 0; i < n; i++ {
		o := <-out
		if o.err != nil {
			r.Errors = append(r.Errors, BackendError{Backend: o.backend, Error: o.err.Error()})
			continue
		}
		r.Results = append(r.Results, BackendResult{Backend: o.backend, Body: o.body})
	}
}
