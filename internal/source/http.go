// Package source retrieves raw image bytes from remote locators.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-image-pipeline/internal/model"
)

// Fetcher retrieves the bytes behind a locator within timeout
type Fetcher interface {
	Fetch(ctx context.Context, locator string, timeout time.Duration) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, locator string, timeout time.Duration) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, locator string, timeout time.Duration) ([]byte, error) {
	return f(ctx, locator, timeout)
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// MaxBodyBytes caps a single download
const MaxBodyBytes = 64 << 20

// HTTPFetcher fetches over HTTP(S)
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFetcher creates a fetcher whose transport keeps up to maxConns idle
// connections per host, matching the fetch stage bound
func NewHTTPFetcher(maxConns int) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if maxConns > 0 {
		transport.MaxIdleConnsPerHost = maxConns
		transport.MaxIdleConns = maxConns
	}
	return &HTTPFetcher{
		Client:    &http.Client{Transport: transport},
		UserAgent: "go-image-pipeline/1.0",
	}
}

// Fetch performs a single GET bounded by timeout.
// Every failure caused by the remote side is a CodeTransientFetch error; a
// cancelled parent context yields a CodeCancelled error instead.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string, timeout time.Duration) ([]byte, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := f.get(attemptCtx, locator)
	if err == nil {
		return body, nil
	}
	if ctx.Err() != nil {
		return nil, model.NewError(model.CodeCancelled, 0, err)
	}
	return nil, model.NewError(model.CodeTransientFetch, 0, err)
}

func (f *HTTPFetcher) get(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: locator, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", locator, MaxBodyBytes)
	}
	return body, nil
}
