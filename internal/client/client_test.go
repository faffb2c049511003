package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNoopClientIsAlwaysSilent(t *testing.T) {
	var c NoopClient
	assert.Nil(t, c.FetchBestKnown(context.Background(), "abc"))
	assert.NotPanics(t, func() { c.UploadSolution(context.Background(), "abc", "1,2", 1) })
	assert.NotPanics(t, func() { c.ReportError(context.Background(), "abc", "Timeout") })
}

func TestHTTPClientFetchBestKnown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instances/deadbeef/best", r.URL.Path)
		json.NewEncoder(w).Encode(bestKnownResponse{Score: intPtr(3)})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, discardLogger())
	score := c.FetchBestKnown(context.Background(), "deadbeef")
	require.NotNil(t, score)
	assert.Equal(t, 3, *score)
}

func TestHTTPClientFetchBestKnownReturnsNilOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, discardLogger())
	assert.Nil(t, c.FetchBestKnown(context.Background(), "deadbeef"))
}

func TestHTTPClientFetchBestKnownReturnsNilOnUnreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", discardLogger())
	assert.Nil(t, c.FetchBestKnown(context.Background(), "deadbeef"))
}

func TestHTTPClientUploadSolutionPostsBody(t *testing.T) {
	var received uploadSolutionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instances/deadbeef/solutions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, discardLogger())
	c.UploadSolution(context.Background(), "deadbeef", "(1,2)\n(3,4)", 2)
	assert.Equal(t, "(1,2)\n(3,4)", received.CanonicalText)
	assert.Equal(t, 2, received.Score)
}

func TestHTTPClientReportErrorDoesNotPanicOnFailure(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", discardLogger())
	assert.NotPanics(t, func() {
		c.ReportError(context.Background(), "deadbeef", "Timeout")
	})
}

func intPtr(v int) *int { return &v }
