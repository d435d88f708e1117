package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 2048

// Request describes one JSON call to a backend API.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Expect  []int // accepted status codes, default 200
}

// DoJSON sends req and decodes the response into out. Transport failures
// become ProviderUnavailable; unexpected statuses are classified with
// ClassifyStatus.
func DoJSON(ctx context.Context, hc *http.Client, b Backend, req Request, out any) *Error {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return SubmitFailed(b, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return SubmitFailed(b, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return TimedOut(b, err)
		}
		return Unavailable(b, err)
	}
	defer resp.Body.Close()

	expect := req.Expect
	if len(expect) == 0 {
		expect = []int{http.StatusOK}
	}
	if !slices.Contains(expect, resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ClassifyStatus(b, resp.StatusCode, string(raw))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Unavailable(b, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
