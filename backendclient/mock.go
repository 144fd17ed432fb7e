package backendclient

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of BackendClient for testing.
type MockClient struct {
	Mu sync.Mutex

	// State returned by Status
	PowStatus string

	// Canned responses
	GenerateResponse  *GenerateResponse
	GetResultResponse *GenerateResponse

	// Error injection
	InitGenerateError error
	GenerateError     error
	GetResultError    error
	StopError         error
	StatusError       error

	// Call tracking
	InitGenerateCalled int
	GenerateCalled     int
	GetResultCalled    int
	StopCalled         int
	StatusCalled       int

	// Capture parameters
	LastInitGenerateRequest *InitGenerateRequest
	LastGenerateRequest     *GenerateRequest
	LastPolledId            string
}

// NewMockClient creates a new mock client reporting IDLE status.
func NewMockClient() *MockClient {
	return &MockClient{
		PowStatus: StatusIdle,
	}
}

func (m *MockClient) InitGenerate(ctx context.Context, req InitGenerateRequest) (*Ack, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.InitGenerateCalled++
	reqCopy := req
	m.LastInitGenerateRequest = &reqCopy
	if m.InitGenerateError != nil {
		return nil, m.InitGenerateError
	}
	return &Ack{Status: "OK"}, nil
}

func (m *MockClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.GenerateCalled++
	reqCopy := req
	m.LastGenerateRequest = &reqCopy
	if m.GenerateError != nil {
		return nil, m.GenerateError
	}
	if m.GenerateResponse != nil {
		return cloneGenerateResponse(m.GenerateResponse), nil
	}
	return &GenerateResponse{
		Status: "completed",
		Raw:    map[string]interface{}{"status": "completed"},
	}, nil
}

func (m *MockClient) GetGenerateResult(ctx context.Context, innerId string) (*GenerateResponse, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.GetResultCalled++
	m.LastPolledId = innerId
	if m.GetResultError != nil {
		return nil, m.GetResultError
	}
	if m.GetResultResponse != nil {
		return cloneGenerateResponse(m.GetResultResponse), nil
	}
	return &GenerateResponse{
		Status:    "completed",
		RequestId: innerId,
		Raw:       map[string]interface{}{"status": "completed", "request_id": innerId},
	}, nil
}

func (m *MockClient) Stop(ctx context.Context) (*Ack, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.StopCalled++
	if m.StopError != nil {
		return nil, m.StopError
	}
	return &Ack{Status: "OK"}, nil
}

func (m *MockClient) Status(ctx context.Context) (*StatusResponse, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.StatusCalled++
	if m.StatusError != nil {
		return nil, m.StatusError
	}
	return &StatusResponse{Status: m.PowStatus}, nil
}

// cloneGenerateResponse copies the canned response so callers mutating the
// raw payload (request id rewrite) do not corrupt the fixture.
func cloneGenerateResponse(r *GenerateResponse) *GenerateResponse {
	raw := make(map[string]interface{}, len(r.Raw))
	for k, v := range r.Raw {
		raw[k] = v
	}
	return &GenerateResponse{Status: r.Status, RequestId: r.RequestId, Raw: raw}
}

// MockClientFactory hands out one MockClient per backend url.
type MockClientFactory struct {
	mu      sync.RWMutex
	clients map[string]*MockClient
}

func NewMockClientFactory() *MockClientFactory {
	return &MockClientFactory{
		clients: make(map[string]*MockClient),
	}
}

func (f *MockClientFactory) CreateClient(pocUrl string) BackendClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, exists := f.clients[pocUrl]; exists {
		return client
	}

	client := NewMockClient()
	f.clients[pocUrl] = client
	return client
}

func (f *MockClientFactory) GetClientForBackend(pocUrl string) *MockClient {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.clients[pocUrl]
}
