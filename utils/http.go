package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// SendPostJsonRequest sends a POST with a JSON-encoded body. The caller owns
// the response body and must close it.
func SendPostJsonRequest(ctx context.Context, client *http.Client, url string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return client.Do(req)
}

// SendGetRequest sends a GET. The caller owns the response body and must close it.
func SendGetRequest(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	return client.Do(req)
}
