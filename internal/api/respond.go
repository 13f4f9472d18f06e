package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries a correlation id end to end; the client transport
// generates one per request and the mock server echoes it back.
const HeaderRequestID = "X-Request-ID"

// body is the encode-side envelope. Kept separate from Envelope so the
// server can embed arbitrary payloads without a RawMessage round-trip.
type body struct {
	Data    any                 `json:"data"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Success sends a successful JSON response with the given status and data.
func Success(c *gin.Context, status int, data any) {
	c.JSON(status, body{Data: data})
}

// SuccessWithMessage sends a successful response including a human message.
func SuccessWithMessage(c *gin.Context, status int, data any, message string) {
	c.JSON(status, body{Data: data, Message: message})
}

// Fail sends an error response with a message and no field-level details.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, body{Message: message})
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, status int, message string, fields map[string][]string) {
	c.JSON(status, body{Message: message, Errors: fields})
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, body{Message: message})
}

// RequestIDMiddleware makes sure every request carries a request id and
// echoes it on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set("request_id", reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}
