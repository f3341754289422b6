// Package providerutil is the shared wire toolkit for driver implementations:
// HTTP error classification, retry hints, auth header merging, and readers for
// the two stream encodings providers actually use.
package providerutil

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/harmonia-ai/loom/core"
)

const maxErrorBody = 4096

// ClassifyHTTPError maps a non-2xx provider response to the error taxonomy.
// The body is truncated for diagnostics; pass modelID when a 404 plausibly
// means an unknown model rather than a bad route.
func ClassifyHTTPError(status int, url string, body []byte, modelID, providerID string) *core.AIError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	message := fmt.Sprintf("provider %s returned HTTP %d", providerID, status)

	switch {
	case status == http.StatusNotFound && modelID != "":
		err := core.NewNoSuchModel(modelID, providerID)
		err.Status = status
		err.URL = url
		err.ResponseBody = string(body)
		return err
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.NewAPICallError(status, url, message+": authentication failed",
			core.WithBodies("", string(body)), core.WithRetryable(false))
	case status == http.StatusBadRequest:
		return core.NewAPICallError(status, url, message+": request rejected",
			core.WithBodies("", string(body)), core.WithRetryable(false))
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return core.NewAPICallError(status, url, message,
			core.WithBodies("", string(body)), core.WithRetryable(true))
	default:
		return core.NewAPICallError(status, url, message,
			core.WithBodies("", string(body)), core.WithRetryable(false))
	}
}

// ClassifyResponse reads the (already failed) response body and classifies it,
// folding in the server's Retry-After hint when present.
func ClassifyResponse(resp *http.Response, modelID, providerID string) *core.AIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := ClassifyHTTPError(resp.StatusCode, resp.Request.URL.String(), body, modelID, providerID)
	if err.Retryable {
		err.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return err
}

// ParseRetryAfter parses a Retry-After header value, either delay seconds or
// an HTTP date. Returns zero when absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
