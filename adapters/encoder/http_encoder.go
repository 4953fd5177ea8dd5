// Package encoder calls the external voice feature extraction service.
// The model behind it (MFCC or an embedding network) is a black box; the
// engine only sees fixed-length feature vectors.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const extractPath = "/extract"

// HTTPEncoder is an HTTP client for the feature extraction service.
type HTTPEncoder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEncoder creates an encoder client for the service at baseURL.
func NewHTTPEncoder(baseURL string, timeout time.Duration) *HTTPEncoder {
	return &HTTPEncoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Encode implements ports.VoiceEncoder.
func (e *HTTPEncoder) Encode(ctx context.Context, samples []float64) ([]float64, error) {
	body, err := json.Marshal(struct {
		Samples []float64 `json:"samples"`
	}{Samples: samples})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+extractPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature extraction returned status %d", resp.StatusCode)
	}

	var out struct {
		Features []float64 `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	if len(out.Features) == 0 {
		return nil, fmt.Errorf("feature extraction returned empty vector")
	}
	return out.Features, nil
}
