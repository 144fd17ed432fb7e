package backendclient

import (
	"context"
	"time"
)

// BackendClient defines the operations the router needs from one backend.
type BackendClient interface {
	InitGenerate(ctx context.Context, req InitGenerateRequest) (*Ack, error)
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	GetGenerateResult(ctx context.Context, innerId string) (*GenerateResponse, error)
	Stop(ctx context.Context) (*Ack, error)
	Status(ctx context.Context) (*StatusResponse, error)
}

// Ensure Client implements BackendClient
var _ BackendClient = (*Client)(nil)

type ClientFactory interface {
	CreateClient(pocUrl string) BackendClient
}

type HttpClientFactory struct {
	Timeout time.Duration
}

func (f *HttpClientFactory) CreateClient(pocUrl string) BackendClient {
	return NewNodeClient(pocUrl, f.Timeout)
}
