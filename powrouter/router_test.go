package powrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poc-router/apiconfig"
	"poc-router/backendclient"
	"poc-router/backendpool"
)

func newTestRouter(t *testing.T, ids ...string) (*Router, *backendpool.Pool, map[string]*backendclient.MockClient) {
	t.Helper()
	configs := make([]apiconfig.BackendConfig, len(ids))
	for i, id := range ids {
		configs[i] = apiconfig.BackendConfig{Id: id, Host: "localhost", PoCPort: 5000 + i}
	}
	factory := backendclient.NewMockClientFactory()
	pool, err := backendpool.NewPool(configs, factory)
	require.NoError(t, err)

	clients := make(map[string]*backendclient.MockClient, len(ids))
	for _, b := range pool.AllBackends() {
		client := factory.GetClientForBackend(b.PocUrl)
		require.NotNil(t, client)
		clients[b.Id] = client
	}
	return NewRouter(pool), pool, clients
}

func initRequest() backendclient.InitGenerateRequest {
	return backendclient.InitGenerateRequest{
		BlockHash:   "blockhash",
		BlockHeight: 100,
		PublicKey:   "pubkey",
		NodeCount:   2,
		BatchSize:   1000,
		Params:      backendclient.PoCParams{Model: "test-model", SeqLen: 512},
	}
}

func TestInitGenerateInjectsGroupSharding(t *testing.T) {
	router, _, clients := newTestRouter(t, "5002", "5001", "5003")

	resp, err := router.InitGenerate(context.Background(), initRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"5001", "5002", "5003"}, resp.Backends)
	assert.Equal(t, 3, resp.NGroups)
	assert.Len(t, resp.Results, 3)
	assert.Empty(t, resp.Errors)

	// group ids follow the sorted snapshot order
	for i, id := range []string{"5001", "5002", "5003"} {
		req := clients[id].LastInitGenerateRequest
		require.NotNil(t, req, "backend %s never called", id)
		assert.Equal(t, i, req.GroupId)
		assert.Equal(t, 3, req.NGroups)
		assert.Equal(t, "blockhash", req.BlockHash)
	}
}

func TestInitGeneratePartialFailureStillSucceeds(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001", "5002")
	clients["5001"].InitGenerateError = errors.New("connection refused")

	resp, err := router.InitGenerate(context.Background(), initRequest())
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "5001", resp.Errors[0].Backend)
}

func TestInitGenerateAllFail(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001", "5002")
	clients["5001"].InitGenerateError = errors.New("boom")
	clients["5002"].InitGenerateError = errors.New("boom")

	resp, err := router.InitGenerate(context.Background(), initRequest())
	require.ErrorIs(t, err, ErrAllBackendsFailed)
	require.NotNil(t, resp)
	assert.Len(t, resp.Errors, 2)
}

func TestInitGenerateNoBackends(t *testing.T) {
	router, pool, _ := newTestRouter(t, "5001")
	pool.SetBusyState("5001", backendpool.BusyError)

	_, err := router.InitGenerate(context.Background(), initRequest())
	assert.ErrorIs(t, err, backendpool.ErrNoBackendsAvailable)
}

func TestStopIsBestEffort(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001", "5002")
	clients["5002"].StopError = errors.New("timeout")

	resp, err := router.Stop(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Len(t, resp.Errors, 1)
}

func TestStopEmptyPoolIsNoop(t *testing.T) {
	router, pool, _ := newTestRouter(t, "5001")
	pool.SetBusyState("5001", backendpool.BusyError)

	resp, err := router.Stop(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Errors)
}

func TestStatusAggregation(t *testing.T) {
	cases := []struct {
		name     string
		statuses map[string]string
		expected string
	}{
		{"all idle", map[string]string{"5001": "IDLE", "5002": "IDLE"}, AggregateIdle},
		{"all generating", map[string]string{"5001": "GENERATING", "5002": "GENERATING"}, AggregateGenerating},
		{"mixed", map[string]string{"5001": "IDLE", "5002": "GENERATING"}, AggregateMixed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _, clients := newTestRouter(t, "5001", "5002")
			for id, status := range tc.statuses {
				clients[id].PowStatus = status
			}
			result, err := router.Status(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result.Status)
			assert.Len(t, result.Backends, 2)
		})
	}
}

func TestStatusNoBackends(t *testing.T) {
	router, pool, _ := newTestRouter(t, "5001")
	pool.SetBusyState("5001", backendpool.BusyError)

	result, err := router.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AggregateNoBackends, result.Status)
	assert.Empty(t, result.Backends)
}

func TestStatusUnreachableBackendIsMixed(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001", "5002")
	clients["5001"].PowStatus = backendclient.StatusIdle
	clients["5002"].StatusError = errors.New("unreachable")

	result, err := router.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AggregateMixed, result.Status)
}

func generateRequest(nonces ...int64) backendclient.GenerateRequest {
	return backendclient.GenerateRequest{
		BlockHash:   "blockhash",
		BlockHeight: 100,
		PublicKey:   "pubkey",
		Nonces:      nonces,
		Params:      backendclient.PoCParams{Model: "test-model", SeqLen: 512},
	}
}

func TestGenerateRoutesToIdleBackend(t *testing.T) {
	router, pool, clients := newTestRouter(t, "5001", "5002")
	pool.SetBusyState("5001", backendpool.BusyGenerating)
	pool.SetBusyState("5002", backendpool.BusyIdle)

	_, err := router.Generate(context.Background(), generateRequest(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, clients["5001"].GenerateCalled)
	assert.Equal(t, 1, clients["5002"].GenerateCalled)
}

func TestGenerateQueuedGetsCompositeId(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001")
	innerId := uuid.New().String()
	clients["5001"].GenerateResponse = &backendclient.GenerateResponse{
		Status:    backendclient.StatusQueued,
		RequestId: innerId,
		Raw:       map[string]interface{}{"status": backendclient.StatusQueued, "request_id": innerId},
	}

	resp, err := router.Generate(context.Background(), generateRequest(1))
	require.NoError(t, err)
	assert.Equal(t, "5001:"+innerId, resp.RequestId)
	assert.Equal(t, "5001:"+innerId, resp.Raw["request_id"])
}

func TestGenerateSynchronousResultUnchanged(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001")
	clients["5001"].GenerateResponse = &backendclient.GenerateResponse{
		Status: "completed",
		Raw:    map[string]interface{}{"status": "completed", "n_total": float64(3)},
	}

	resp, err := router.Generate(context.Background(), generateRequest(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, float64(3), resp.Raw["n_total"])
	assert.NotContains(t, resp.Raw, "request_id")
}

func TestGenerateReleasesOnError(t *testing.T) {
	router, pool, clients := newTestRouter(t, "5001")
	clients["5001"].GenerateError = errors.New("boom")

	_, err := router.Generate(context.Background(), generateRequest(1))
	require.Error(t, err)
	assert.Equal(t, 0, pool.InFlight("5001"))
}

func TestGenerateUpstreamErrorPassedThrough(t *testing.T) {
	router, pool, clients := newTestRouter(t, "5001")
	clients["5001"].GenerateError = &backendclient.UpstreamError{StatusCode: 409, Body: "already generating"}

	_, err := router.Generate(context.Background(), generateRequest(1))
	var upstream *backendclient.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 409, upstream.StatusCode)
	assert.Equal(t, 0, pool.InFlight("5001"))
}

func TestGenerateNoBackends(t *testing.T) {
	router, pool, _ := newTestRouter(t, "5001")
	pool.SetBusyState("5001", backendpool.BusyError)

	_, err := router.Generate(context.Background(), generateRequest(1))
	assert.ErrorIs(t, err, backendpool.ErrNoBackendsAvailable)
}

func TestGenerateValidationPreconditions(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001")

	req := generateRequest(1, 2)
	req.Validation = &backendclient.ValidationPayload{
		Artifacts: []backendclient.Artifact{{Nonce: 1, VectorB64: "AAA="}},
	}
	_, err := router.Generate(context.Background(), req)
	var badRequest *BadRequestError
	require.ErrorAs(t, err, &badRequest)
	assert.Equal(t, 0, clients["5001"].GenerateCalled)

	req.Validation.Artifacts = []backendclient.Artifact{
		{Nonce: 1, VectorB64: "AAA="},
		{Nonce: 3, VectorB64: "AAA="},
	}
	_, err = router.Generate(context.Background(), req)
	require.ErrorAs(t, err, &badRequest)

	req.Validation.Artifacts = []backendclient.Artifact{
		{Nonce: 1, VectorB64: "AAA="},
		{Nonce: 2, VectorB64: "AAA="},
	}
	_, err = router.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, clients["5001"].GenerateCalled)
}

func TestPollResultRewritesComposite(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001", "5002")
	clients["5002"].GetResultResponse = &backendclient.GenerateResponse{
		Status:    "completed",
		RequestId: "abc-uuid",
		Raw:       map[string]interface{}{"status": "completed", "request_id": "abc-uuid"},
	}

	resp, err := router.PollResult(context.Background(), "5002:abc-uuid")
	require.NoError(t, err)
	assert.Equal(t, "5002:abc-uuid", resp.RequestId)
	assert.Equal(t, "5002:abc-uuid", resp.Raw["request_id"])
	assert.Equal(t, "abc-uuid", clients["5002"].LastPolledId)
	assert.Equal(t, 0, clients["5001"].GetResultCalled)
}

func TestPollResultIdempotent(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001")
	clients["5001"].GetResultResponse = &backendclient.GenerateResponse{
		Status:    "completed",
		RequestId: "abc",
		Raw:       map[string]interface{}{"status": "completed", "request_id": "abc", "n_total": float64(10)},
	}

	first, err := router.PollResult(context.Background(), "5001:abc")
	require.NoError(t, err)
	second, err := router.PollResult(context.Background(), "5001:abc")
	require.NoError(t, err)
	assert.Equal(t, first.Raw, second.Raw)
}

func TestPollResultBadIds(t *testing.T) {
	router, _, _ := newTestRouter(t, "5001")

	var badRequest *BadRequestError
	_, err := router.PollResult(context.Background(), "missing-separator")
	require.ErrorAs(t, err, &badRequest)
	assert.Equal(t, "invalid id format", badRequest.Message)

	_, err = router.PollResult(context.Background(), "9999:abc")
	require.ErrorAs(t, err, &badRequest)
	assert.Equal(t, "invalid backend reference", badRequest.Message)
}

func TestPollResultNotFoundPassesThrough(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001")
	clients["5001"].GetResultError = &backendclient.UpstreamError{StatusCode: 404, Body: "unknown request"}

	_, err := router.PollResult(context.Background(), "5001:unknown")
	var upstream *backendclient.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 404, upstream.StatusCode)
}

func TestPollResultTransportErrorIsBackendFailure(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001")
	clients["5001"].GetResultError = errors.New("dial tcp: connection refused")

	_, err := router.PollResult(context.Background(), "5001:abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllBackendsFailed)
	var upstream *backendclient.UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestPollResultSetsMissingRequestId(t *testing.T) {
	router, _, clients := newTestRouter(t, "5001")
	clients["5001"].GetResultResponse = &backendclient.GenerateResponse{
		Status: "completed",
		Raw:    map[string]interface{}{"status": "completed", "n_total": float64(5)},
	}

	resp, err := router.PollResult(context.Background(), "5001:abc")
	require.NoError(t, err)
	assert.Equal(t, "5001:abc", resp.RequestId)
	assert.Equal(t, "5001:abc", resp.Raw["request_id"])
}
