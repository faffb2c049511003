// Package client implements the boundary-only server client of spec.md
// §4.7: three idempotent, best-effort operations keyed by an instance's
// idigest. Every failure is logged and swallowed here — the interface never
// lets a network hiccup alter a task's outcome.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client is the executor's view of the STRIDE server: fetch a previously
// known best score, upload a freshly confirmed one, and report the fixed
// subset of failure kinds worth surfacing centrally.
type Client interface {
	// FetchBestKnown returns the best known score for idigest, or nil if the
	// server has none on record or the call failed.
	FetchBestKnown(ctx context.Context, idigest string) *int
	// UploadSolution reports a confirmed Valid solution. Called only for
	// Valid outcomes, per §4.7.
	UploadSolution(ctx context.Context, idigest, canonicalText string, score int)
	// ReportError reports a task outcome from the fixed subset
	// {Timeout, SolverError, Infeasible}.
	ReportError(ctx context.Context, idigest, resultKind string)
}

// NoopClient implements Client by doing nothing. It backs --offline mode.
type NoopClient struct{}

func (NoopClient) FetchBestKnown(context.Context, string) *int         { return nil }
func (NoopClient) UploadSolution(context.Context, string, string, int) {}
func (NoopClient) ReportError(context.Context, string, string)         {}

// HTTPClient talks to a STRIDE server over a small JSON HTTP API. Every
// method logs and swallows its own errors, matching §4.7's "server client
// errors are swallowed, logged at warn level, never alter a task's outcome".
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Log        *slog.Logger
}

// NewHTTPClient builds an HTTPClient with a sane request timeout.
func NewHTTPClient(baseURL string, log *slog.Logger) *HTTPClient {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Log:        log,
	}
}

type bestKnownResponse struct {
	Score *int `json:"score"`
}

func (c *HTTPClient) FetchBestKnown(ctx context.Context, idigest string) *int {
	u := fmt.Sprintf("%s/instances/%s/best", c.BaseURL, url.PathEscape(idigest))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.Log.Warn("server client: building fetch_best_known request", "idigest", idigest, "err", err)
		return nil
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Log.Warn("server client: fetch_best_known failed", "idigest", idigest, "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.Log.Warn("server client: fetch_best_known non-200", "idigest", idigest, "status", resp.StatusCode)
		return nil
	}

	var body bestKnownResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.Log.Warn("server client: decoding fetch_best_known response", "idigest", idigest, "err", err)
		return nil
	}
	return body.Score
}

type uploadSolutionRequest struct {
	CanonicalText string `json:"canonical_text"`
	Score         int    `json:"score"`
}

func (c *HTTPClient) UploadSolution(ctx context.Context, idigest, canonicalText string, score int) {
	body, err := json.Marshal(uploadSolutionRequest{CanonicalText: canonicalText, Score: score})
	if err != nil {
		c.Log.Warn("server client: encoding upload_solution body", "idigest", idigest, "err", err)
		return
	}
	c.post(ctx, fmt.Sprintf("%s/instances/%s/solutions", c.BaseURL, url.PathEscape(idigest)), body, "upload_solution", idigest)
}

type reportErrorRequest struct {
	ResultKind string `json:"result_kind"`
}

func (c *HTTPClient) ReportError(ctx context.Context, idigest, resultKind string) {
	body, err := json.Marshal(reportErrorRequest{ResultKind: resultKind})
	if err != nil {
		c.Log.Warn("server client: encoding report_error body", "idigest", idigest, "err", err)
		return
	}
	c.post(ctx, fmt.Sprintf("%s/instances/%s/errors", c.BaseURL, url.PathEscape(idigest)), body, "report_error", idigest)
}

func (c *HTTPClient) post(ctx context.Context, u string, body []byte, op, idigest string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		c.Log.Warn("server client: building request", "op", op, "idigest", idigest, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Log.Warn("server client: request failed", "op", op, "idigest", idigest, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.Log.Warn("server client: non-2xx response", "op", op, "idigest", idigest, "status", resp.StatusCode)
	}
}
