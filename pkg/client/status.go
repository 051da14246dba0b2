package client

import (
	"context"
	"net/http"
	"time"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/goccy/go-json"
)

var statusClient = &http.Client{Timeout: 5 * time.Second}

// Status polls the server's read-only counter endpoint.
func Status(ctx context.Context, addr string) (api.StatusResponse, error) {
	var st api.StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return st, err
	}
	resp, err := statusClient.Do(req)
	if err != nil {
		return st, err
	}
	defer func() { _ = resp.Body.Close() }()
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}
