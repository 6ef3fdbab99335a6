package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/guttosm/resilience-layer/internal/balancer"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 10 << 20

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend responded %d %s", e.Code, http.StatusText(e.Code))
}

// TargetFault reports whether the status reflects a target failure rather
// than a problem with the request.
func (e *StatusError) TargetFault() bool {
	return e.Code >= http.StatusInternalServerError
}

// Fetcher performs the outbound call against a chosen target.
type Fetcher interface {
	Fetch(ctx context.Context, target balancer.TargetRef, path string) ([]byte, error)
}

// HTTPFetcher issues GET <address><path>.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, target balancer.TargetRef, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(target.Address, "/")+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}
