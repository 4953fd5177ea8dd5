package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/presence/adapters/locker"
	"github.com/layer-3/presence/adapters/store"
	"github.com/layer-3/presence/adapters/tokenizer"
	"github.com/layer-3/presence/config"
	"github.com/layer-3/presence/core"
	"github.com/layer-3/presence/internal/eth"
	"github.com/layer-3/presence/ports"
	"github.com/layer-3/presence/service"
)

func testTokenKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

type echoEncoder struct{}

func (echoEncoder) Encode(_ context.Context, samples []float64) ([]float64, error) {
	return samples, nil
}

type nopEvents struct{}

func (nopEvents) PublishStageChanged(context.Context, string, string, core.State) error {
	return nil
}

func (nopEvents) PublishCompleted(context.Context, string, core.VerificationRecord) error {
	return nil
}

type nopSubmitter struct{}

func (nopSubmitter) Submit(context.Context, core.AttestationPayload) (ports.SubmissionResult, error) {
	return ports.SubmissionResult{Success: true}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, ports.Tokenizer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()

	key, err := eth.GenerateSigningKey()
	require.NoError(t, err)
	signer, err := eth.NewSigner(key, eth.SchemePersonal)
	require.NoError(t, err)

	cfg := config.DefaultVerification()
	cfg.FaceChallengeTimeout = config.Duration(50 * time.Millisecond)
	cfg.VoiceCountdown = config.Duration(time.Millisecond)
	cfg.RecordingWindow = config.Duration(10 * time.Millisecond)
	cfg.PollInterval = config.Duration(5 * time.Millisecond)

	enrollment := service.NewEnrollmentService(st, echoEncoder{}, nil)
	verification := service.NewVerificationService(cfg, nil, service.Dependencies{
		Store:     st,
		Locker:    locker.NewMemoryLocker(),
		Events:    nopEvents{},
		Submitter: nopSubmitter{},
		Encoder:   echoEncoder{},
		Signer:    signer,
	})

	tokenKey := testTokenKey(t)
	tk := tokenizer.NewJWTTokenizer(tokenKey)
	return SetupRouter(enrollment, verification, st, tk), tk
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEnrollEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/verification/enroll", gin.H{
		"user_id":        "alice",
		"wallet_address": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"face_samples":   [][]float64{{1, 2}, {3, 4}, {5, 6}},
		"voice_clips":    [][]float64{{1, 2}, {3, 4}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		UserID    string `json:"user_id"`
		FaceHash  string `json:"face_hash"`
		VoiceHash string `json:"voice_hash"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "alice", resp.UserID)
	require.Len(t, resp.FaceHash, 64)
	require.Len(t, resp.VoiceHash, 64)
}

func TestEnrollEndpointRejectsTooFewSamples(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/verification/enroll", gin.H{
		"user_id":        "alice",
		"wallet_address": "0x01",
		"face_samples":   [][]float64{{1, 2}},
		"voice_clips":    [][]float64{{1, 2}, {3, 4}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpointUnknownUser(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/verification/verify", gin.H{
		"user_id":        "ghost",
		"wallet_address": "0x01",
		"frames":         []core.LandmarkFrame{{At: time.Now()}},
		"audio":          []float64{0.1},
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryRequiresPresenceToken(t *testing.T) {
	router, tk := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	now := time.Now()
	token, err := tk.IssuePresenceToken(ports.PresenceGrant{
		SessionID:     "sess-1",
		UserID:        "alice",
		WalletAddress: "0x01",
		IssuedAt:      now,
		ExpiresAt:     now.Add(time.Hour),
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "alice", resp.UserID)
}
