package backendclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"poc-router/utils"
)

// UpstreamError is a non-2xx response from a backend. The router passes the
// status code through verbatim, so it is preserved here rather than flattened
// into an opaque error string.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// GenerateResponse is the parsed body of a /generate or /generate/{id}
// response. Raw holds the full payload so the router can return it unchanged
// apart from the request id rewrite.
type GenerateResponse struct {
	Status    string
	RequestId string
	Raw       map[string]interface{}
}

// StatusQueued marks an asynchronous generate outcome carrying an inner id.
const StatusQueued = "queued"

// SetRequestId rewrites the request id in the raw payload.
func (r *GenerateResponse) SetRequestId(id string) {
	r.RequestId = id
	r.Raw["request_id"] = id
}

// Client talks to a single backend's PoC API.
type Client struct {
	pocUrl string
	client http.Client
}

func NewNodeClient(pocUrl string, timeout time.Duration) *Client {
	return &Client{
		pocUrl: pocUrl,
		client: http.Client{Timeout: timeout},
	}
}

// InitGenerate starts sharded PoC generation on this backend.
func (c *Client) InitGenerate(ctx context.Context, req InitGenerateRequest) (*Ack, error) {
	requestUrl, err := url.JoinPath(c.pocUrl, "/api/v1/pow/init/generate")
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, requestUrl, req)
	if err != nil {
		return nil, err
	}

	var resp Ack
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop halts generation on this backend.
func (c *Client) Stop(ctx context.Context) (*Ack, error) {
	requestUrl, err := url.JoinPath(c.pocUrl, "/api/v1/pow/stop")
	if err != nil {
		return nil, err
	}

	// POST with empty body
	body, err := c.post(ctx, requestUrl, struct{}{})
	if err != nil {
		return nil, err
	}

	var resp Ack
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status reports this backend's busy state.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	requestUrl, err := url.JoinPath(c.pocUrl, "/api/v1/pow/status")
	if err != nil {
		return nil, err
	}

	httpResp, err := utils.SendGetRequest(ctx, &c.client, requestUrl)
	if err != nil {
		return nil, err
	}
	body, err := readBody(httpResp)
	if err != nil {
		return nil, err
	}

	var resp StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Generate triggers generation or validation for specific nonces.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	requestUrl, err := url.JoinPath(c.pocUrl, "/api/v1/pow/generate")
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, requestUrl, req)
	if err != nil {
		return nil, err
	}

	return parseGenerateResponse(body)
}

// GetGenerateResult polls a queued generate request by the backend's own id.
func (c *Client) GetGenerateResult(ctx context.Context, innerId string) (*GenerateResponse, error) {
	requestUrl, err := url.JoinPath(c.pocUrl, "/api/v1/pow/generate", innerId)
	if err != nil {
		return nil, err
	}

	httpResp, err := utils.SendGetRequest(ctx, &c.client, requestUrl)
	if err != nil {
		return nil, err
	}
	body, err := readBody(httpResp)
	if err != nil {
		return nil, err
	}

	return parseGenerateResponse(body)
}

func (c *Client) post(ctx context.Context, url string, req interface{}) ([]byte, error) {
	httpResp, err := utils.SendPostJsonRequest(ctx, &c.client, url, req)
	if err != nil {
		return nil, err
	}
	return readBody(httpResp)
}

func readBody(httpResp *http.Response) ([]byte, error) {
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode >= 400 {
		return nil, &UpstreamError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func parseGenerateResponse(body []byte) (*GenerateResponse, error) {
	raw := make(map[string]interface{})
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	resp := &GenerateResponse{Raw: raw}
	if s, ok := raw["status"].(string); ok {
		resp.Status = s
	}
	if id, ok := raw["request_id"].(string); ok {
		resp.RequestId = id
	}
	return resp, nil
}
