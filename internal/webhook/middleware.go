package webhook

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"inkflow_backend/platform/httpkit"
)

const signatureHeader = "X-Webhook-Signature"

// SignatureVerifier checks a webhook body against its signature header.
type SignatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// VerifySignature authenticates payment webhooks. The body is re-buffered so
// the handler can still bind it.
func VerifySignature(verifier SignatureVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable body", nil)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !verifier.VerifyWebhookSignature(body, c.GetHeader(signatureHeader)) {
			httpkit.Error(c, http.StatusUnauthorized, "invalid webhook signature", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
