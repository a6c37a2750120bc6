package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"voiceai-platform/internal/agentcontext"
	"voiceai-platform/internal/auth"
	"voiceai-platform/internal/calls"
	"voiceai-platform/internal/conversations"
	"voiceai-platform/internal/profiles"
	"voiceai-platform/internal/reporting"
	"voiceai-platform/internal/telephony"
	"voiceai-platform/pkg/logger"
	"voiceai-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Ingestor  *calls.Ingestor
	Assembler *agentcontext.Assembler
	Profiles  *profiles.Service
	Reporting *reporting.Service
	Turns     conversations.Repository
	Initiator telephony.CallInitiator
	Caps      *telephony.CallCaps

	// DefaultAgentID is used for outbound calls that do not name an agent.
	DefaultAgentID string
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Agent context ---

type agentContextRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// AgentContext assembles the conversation window the voice agent is primed
// with at call start. The agent runtime may ask on behalf of any user it is
// calling, so an explicit user_id in the body wins over the caller identity.
func (h Handlers) AgentContext(c *gin.Context) {
	var req agentContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID := req.UserID
	if userID == "" {
		userID, _ = auth.UserID(c.Request.Context())
	}

	win, err := h.Assembler.Assemble(c.Request.Context(), userID, req.Limit)
	if err != nil {
		if errors.Is(err, agentcontext.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("context assembly failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "context assembly failed"})
		return
	}
	c.JSON(http.StatusOK, win)
}

// --- Calls ---

type startCallRequest struct {
	PhoneNumber string        `json:"phone_number"`
	AgentID     string        `json:"agent_id"`
	Metadata    utils.JSONMap `json:"metadata,omitempty"`
}

// StartCall places an outbound call through the voice provider. A per-user
// Redis cap bounds concurrent outbound calls; the slot is released when the
// terminal status callback arrives, with the key TTL as backstop.
func (h Handlers) StartCall(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number required"})
		return
	}
	agentID := req.AgentID
	if agentID == "" {
		agentID = h.DefaultAgentID
	}
	if agentID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id required"})
		return
	}

	if h.Caps != nil {
		ok, err := h.Caps.Acquire(c.Request.Context(), userID)
		if err != nil {
			logger.FromGin(c).Error("call cap check failed", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call cap check failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many active calls"})
			return
		}
	}

	info, err := h.Initiator.StartCall(c.Request.Context(), telephony.StartCallRequest{
		AgentID:     agentID,
		PhoneNumber: req.PhoneNumber,
		Metadata:    req.Metadata,
	})
	if err != nil {
		if h.Caps != nil {
			_ = h.Caps.Release(c.Request.Context(), userID)
		}
		logger.FromGin(c).Error("start call failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider call failed"})
		return
	}

	// Seed the call record so the dashboard sees the call before the first
	// status callback lands. Callback delivery does not depend on this write.
	res, err := h.Ingestor.Ingest(c.Request.Context(), calls.CallEvent{
		CallSID:     info.ID,
		UserID:      userID,
		PhoneNumber: req.PhoneNumber,
		Status:      calls.CallStatusInitiated,
		Metadata:    req.Metadata,
	})
	if err != nil {
		logger.FromGin(c).Warn("seed call record failed", "call_sid", info.ID, "err", err)
		c.JSON(http.StatusOK, gin.H{"call": info})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": info, "callLog": res.Record})
}

func (h Handlers) ListCalls(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	recs, err := h.Ingestor.ListByUser(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		logger.FromGin(c).Error("list calls failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list calls failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs})
}

// --- Conversations ---

func (h Handlers) ListConversations(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	limit := queryLimit(c)
	if limit <= 0 {
		limit = agentcontext.DefaultTurnLimit
	}
	turns, err := h.Turns.ListRecent(c.Request.Context(), userID, limit)
	if err != nil {
		logger.FromGin(c).Error("list conversations failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list conversations failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": turns})
}

// --- Stats ---

func (h Handlers) Stats(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	sum, err := h.Reporting.ActivitySummary(c.Request.Context(), userID)
	if err != nil {
		logger.FromGin(c).Error("stats failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Profile ---

func (h Handlers) GetProfile(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	p, err := h.Profiles.Get(c.Request.Context(), userID)
	if err != nil {
		logger.FromGin(c).Error("profile lookup failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile lookup failed"})
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"profile": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h Handlers) PutProfile(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req profiles.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := h.Profiles.Save(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, profiles.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("profile save failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func queryLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
