package main

import (
	"voiceai-platform/internal/httpapi"
	"voiceai-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, webhook telephony.StatusCallbackHandler, sigMW, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider status callbacks. Unauthenticated, but signature-checked when
	// a Twilio auth token is configured.
	r.POST("/webhooks/twilio/call", sigMW, webhook.HandleStatusCallback)

	// Token issuance sits outside the protected group.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.POST("/agent/context", h.AgentContext)

		v1.POST("/calls/start", h.StartCall)
		v1.GET("/calls", h.ListCalls)

		v1.GET("/conversations", h.ListConversations)
		v1.GET("/stats", h.Stats)

		v1.GET("/profile", h.GetProfile)
		v1.PUT("/profile", h.PutProfile)
	}
}
