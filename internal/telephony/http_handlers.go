package telephony

import (
	"errors"
	"net/http"

	"voiceai-platform/internal/calls"
	"voiceai-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StatusCallbackHandler converts the provider's status callback into a call
// event, hands it to the ingestor, and answers in a shape the provider's
// retry machinery understands: 400 only for an unusable payload, 500 for
// storage trouble (so the provider redelivers), 200 for everything else.
//
// No lifecycle logic here.
type StatusCallbackHandler struct {
	Ingestor *calls.Ingestor

	// Caps releases the caller's concurrent-call slot on terminal events.
	// Optional; nil disables cap accounting.
	Caps *CallCaps
}

func (h StatusCallbackHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Ingestor == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingestor not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("status callback parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	ev, err := form.ToCallEvent()
	if err != nil {
		log.Warn("status callback rejected", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Ingestor.Ingest(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, calls.ErrInvalidEvent) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Storage failure: answer 5xx so the provider retries the delivery.
		log.Error("call event ingest failed", "call_sid", ev.CallSID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if h.Caps != nil && res.Record.Status.IsTerminal() && res.Record.UserID != "" {
		if err := h.Caps.Release(c.Request.Context(), res.Record.UserID); err != nil {
			// TTL expiry reclaims the slot; don't fail the webhook.
			log.Warn("call cap release failed", "user_id", res.Record.UserID, "err", err)
		}
	}

	body := gin.H{"success": true, "callLog": res.Record}
	if res.Turn != nil {
		body["conversation"] = res.Turn
	}
	c.JSON(http.StatusOK, body)
}
