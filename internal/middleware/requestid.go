package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"
	ContextLeadID    = "lead_id"
)

// RequestID reuses a well-formed X-Request-ID from the caller or mints one,
// and notes which lead the route targets so every log line can carry it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if _, err := uuid.Parse(rid); err != nil {
			rid = uuid.NewString()
		}
		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)

		if leadID, err := uuid.Parse(c.Param("id")); err == nil {
			c.Set(ContextLeadID, leadID.String())
		}
		c.Next()
	}
}

// requestLogger scopes base to the request: correlation id, matched route,
// and the lead when the route names one.
func requestLogger(base *zerolog.Logger, c *gin.Context) zerolog.Logger {
	ctx := base.With().
		Str("request_id", c.GetString(ContextRequestID)).
		Str("method", c.Request.Method).
		Str("route", route(c))
	if leadID := c.GetString(ContextLeadID); leadID != "" {
		ctx = ctx.Str("lead_id", leadID)
	}
	return ctx.Logger()
}

// route is the registered pattern, falling back to the raw path for
// unmatched requests.
func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
