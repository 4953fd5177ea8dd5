package encoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, extractPath, r.URL.Path)
		var req struct {
			Samples []float64 `json:"samples"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []float64{0.1, 0.2}, req.Samples)

		json.NewEncoder(w).Encode(map[string][]float64{"features": {1, 2, 3}})
	}))
	defer srv.Close()

	e := NewHTTPEncoder(srv.URL, time.Second)
	features, err := e.Encode(context.Background(), []float64{0.1, 0.2})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, features)
}

func TestEncodeRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTPEncoder(srv.URL, time.Second)
	_, err := e.Encode(context.Background(), []float64{0.1})
	require.Error(t, err)
}

func TestEncodeRejectsEmptyFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]float64{"features": {}})
	}))
	defer srv.Close()

	e := NewHTTPEncoder(srv.URL, time.Second)
	_, err := e.Encode(context.Background(), []float64{0.1})
	require.Error(t, err)
}
