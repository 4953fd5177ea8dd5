package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/presence/adapters/capture"
	"github.com/layer-3/presence/core"
	"github.com/layer-3/presence/ports"
	"github.com/layer-3/presence/service"
)

// PresenceTokenTTL bounds how long a proof-of-presence token stays valid.
const PresenceTokenTTL = 15 * time.Minute

// VerificationHandlers contains HTTP handlers for the verification endpoints
type VerificationHandlers struct {
	enrollment   *service.EnrollmentService
	verification *service.VerificationService
	store        ports.Store
	tokenizer    ports.Tokenizer
}

// NewVerificationHandlers creates new verification handlers
func NewVerificationHandlers(enrollment *service.EnrollmentService, verification *service.VerificationService, store ports.Store, tokenizer ports.Tokenizer) *VerificationHandlers {
	return &VerificationHandlers{
		enrollment:   enrollment,
		verification: verification,
		store:        store,
		tokenizer:    tokenizer,
	}
}

// Enroll handles the enrollment request
func (h *VerificationHandlers) Enroll(c *gin.Context) {
	var req struct {
		UserID        string      `json:"user_id" binding:"required"`
		WalletAddress string      `json:"wallet_address" binding:"required"`
		FaceSamples   [][]float64 `json:"face_samples" binding:"required"`
		VoiceClips    [][]float64 `json:"voice_clips" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	enr, err := h.enrollment.Enroll(c.Request.Context(), req.UserID, req.WalletAddress, req.FaceSamples, req.VoiceClips)
	if err != nil {
		if errors.Is(err, core.ErrInsufficientSamples) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Not enough samples for enrollment"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Enrollment failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    enr.UserID,
		"face_hash":  enr.FaceHash,
		"voice_hash": enr.VoiceHash,
		"created_at": enr.CreatedAt,
	})
}

type stageResponse struct {
	Stage  core.Stage `json:"stage"`
	Passed bool       `json:"passed"`
	Metric float64    `json:"metric"`
	Reason string     `json:"reason,omitempty"`
}

// Verify runs a full verification session over replayed capture data.
func (h *VerificationHandlers) Verify(c *gin.Context) {
	var req struct {
		UserID        string               `json:"user_id" binding:"required"`
		WalletAddress string               `json:"wallet_address" binding:"required"`
		Frames        []core.LandmarkFrame `json:"frames" binding:"required"`
		Audio         []float64            `json:"audio" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	outcome, err := h.verification.RunSession(c.Request.Context(), req.UserID, req.WalletAddress,
		capture.NewReplayFrameSource(req.Frames), capture.NewReplayAudioSource(req.Audio))
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Verification failed"

		switch {
		case errors.Is(err, core.ErrNotEnrolled):
			statusCode = http.StatusNotFound
			errorMsg = "User is not enrolled"
		case errors.Is(err, core.ErrSessionActive):
			statusCode = http.StatusConflict
			errorMsg = "A verification session is already active"
		case errors.Is(err, core.ErrCaptureUnavailable):
			statusCode = http.StatusUnprocessableEntity
			errorMsg = "No capture data available"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	stages := make([]stageResponse, 0, len(outcome.Session.Stages))
	for _, s := range outcome.Session.Stages {
		stages = append(stages, stageResponse{Stage: s.Stage, Passed: s.Passed, Metric: s.Metric, Reason: s.Reason})
	}

	resp := gin.H{
		"session_id": outcome.Session.ID,
		"state":      outcome.Session.State,
		"verified":   outcome.Session.Verdict,
		"stages":     stages,
	}
	if outcome.Payload != nil {
		resp["attestation"] = outcome.Payload
	}
	if outcome.Submission != nil {
		resp["submission"] = outcome.Submission
	}

	if outcome.Session.Verdict {
		now := time.Now()
		token, err := h.tokenizer.IssuePresenceToken(ports.PresenceGrant{
			SessionID:     outcome.Session.ID,
			UserID:        req.UserID,
			WalletAddress: req.WalletAddress,
			IssuedAt:      now,
			ExpiresAt:     now.Add(PresenceTokenTTL),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue presence token"})
			return
		}
		resp["presence_token"] = token
	}

	c.JSON(http.StatusOK, resp)
}

// History lists the caller's verification records, most recent first.
func (h *VerificationHandlers) History(c *gin.Context) {
	userID := c.GetString("userID")

	records, err := h.store.History(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"face_liveness":     rec.FaceLiveness,
			"voice_match":       rec.VoiceMatch,
			"lip_sync":          rec.LipSync,
			"overall_result":    rec.OverallResult,
			"hash_value":        rec.HashValue,
			"signature":         rec.Signature,
			"verification_time": rec.VerificationTime,
		})
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "history": out})
}
