package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/source"
)

func TestHTTPFetcher_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/001.png", r.URL.Path)
		require.Equal(t, "image/*", r.Header.Get("Accept"))
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := source.NewHTTPFetcher(4)
	body, err := f.Fetch(context.Background(), srv.URL+"/001.png", time.Second)
	require.NoError(t, err)
	require.Equal(t, "payload", string(body))
}

func TestHTTPFetcher_Non2xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := source.NewHTTPFetcher(1).Fetch(context.Background(), srv.URL+"/037.png", time.Second)
	require.Error(t, err)
	require.True(t, model.IsRetryable(err))

	var statusErr *source.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestHTTPFetcher_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := source.NewHTTPFetcher(1).Fetch(context.Background(), srv.URL, 50*time.Millisecond)
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, model.CodeTransientFetch, model.CodeOf(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPFetcher_ParentCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := source.NewHTTPFetcher(1).Fetch(ctx, srv.URL, 5*time.Second)
	require.Error(t, err)
	require.Equal(t, model.CodeCancelled, model.CodeOf(err))
	require.False(t, model.IsRetryable(err))
}

func TestHTTPFetcher_BadURL(t *testing.T) {
	_, err := source.NewHTTPFetcher(1).Fetch(context.Background(), "://nope", time.Second)
	require.Error(t, err)
	require.True(t, model.IsRetryable(err))
}
