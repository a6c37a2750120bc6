package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"voiceai-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature computes the expected X-Twilio-Signature for a
// form-encoded request: base64(HMAC-SHA1(url + params sorted by key)).
// Ref: https://www.twilio.com/docs/usage/security#validating-requests
func TwilioSignature(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// RequireTwilioSignature rejects form-encoded callbacks whose signature does
// not verify against authToken. JSON re-deliveries are not signed by Twilio
// and pass through; an empty token disables validation (local dev).
func RequireTwilioSignature(authToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}
		ct, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if ct == "application/json" {
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}

		want := TwilioSignature(authToken, requestURL(c.Request), c.Request.PostForm)
		got := c.GetHeader(twilioSignatureHeader)
		if got == "" || !hmac.Equal([]byte(want), []byte(got)) {
			logger.FromGin(c).Warn("twilio signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "signature verification failed"})
			return
		}
		c.Next()
	}
}

// requestURL reconstructs the externally visible URL Twilio signed,
// honoring proxy forwarding headers.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
