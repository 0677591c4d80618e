package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
)

// RequestIDKey is the gin key holding the request id set by the logger middleware
const RequestIDKey = "request_id"

// Secure sets the response headers every endpoint carries
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// NoStore keeps tenant configuration out of shared caches. Responses differ
// per tenant for the same URL, so Vary names the tenant headers too.
func NoStore(varyHeaders ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		for _, h := range varyHeaders {
			c.Writer.Header().Add("Vary", h)
		}
		c.Next()
	}
}

// BodyLimit rejects request bodies larger than maxBytes
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			abortWithError(c, http.StatusRequestEntityTooLarge, dto.ErrCodeBadRequest, "Request body exceeds maximum allowed size")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, c.GetString(RequestIDKey)))
}
