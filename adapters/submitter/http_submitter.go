// Package submitter delivers signed attestations to the external backend
// over HTTP. Submission is best effort: transient failures are retried a
// bounded number of times and a final failure never changes the verdict.
package submitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/layer-3/presence/core"
	"github.com/layer-3/presence/ports"
)

const submitPath = "/api/verification/verify"

// HTTPSubmitter posts attestation payloads to the backend REST API.
type HTTPSubmitter struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewHTTPSubmitter creates a submitter for the backend at baseURL.
func NewHTTPSubmitter(baseURL, apiKey string, timeout time.Duration, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *HTTPSubmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSubmitter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Submit implements ports.Submitter. Network errors and 5xx responses are
// retried with a fixed delay; 4xx responses are not.
func (s *HTTPSubmitter) Submit(ctx context.Context, payload core.AttestationPayload) (ports.SubmissionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.SubmissionResult{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ports.SubmissionResult{}, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		result, retryable, err := s.post(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		s.logger.Warn("attestation submission attempt failed",
			"attempt", attempt+1,
			"user_id", payload.UserID,
			"error", err)
	}

	return ports.SubmissionResult{}, fmt.Errorf("%v: %w", lastErr, core.ErrSubmissionFailed)
}

func (s *HTTPSubmitter) post(ctx context.Context, body []byte) (ports.SubmissionResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+submitPath, bytes.NewReader(body))
	if err != nil {
		return ports.SubmissionResult{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return ports.SubmissionResult{}, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result ports.SubmissionResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return ports.SubmissionResult{}, false, fmt.Errorf("failed to decode response: %w", err)
		}
		return result, false, nil
	case resp.StatusCode >= 500:
		return ports.SubmissionResult{}, true, fmt.Errorf("backend returned status %d", resp.StatusCode)
	default:
		return ports.SubmissionResult{}, false, fmt.Errorf("backend rejected submission with status %d", resp.StatusCode)
	}
}
