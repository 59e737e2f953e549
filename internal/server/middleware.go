package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contextUserIDKey = "user_id"

// requestUserID returns the acting user for audit trails. The logger
// middleware resolves X-User-Id and falls back to "system".
func requestUserID(c *gin.Context) string {
	userID := strings.TrimSpace(c.GetString(contextUserIDKey))
	if userID == "" {
		return "system"
	}
	return userID
}

// ReadingIngestRateLimit throttles reading submissions per meter. With
// no limiter configured every request passes.
func (s *Server) ReadingIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.readingLimiter.Enabled() {
			c.Next()
			return
		}

		meterID := strings.TrimSpace(c.Param("id"))
		allowed, err := s.readingLimiter.AllowMeter(c.Request.Context(), meterID)
		if err != nil {
			// redis trouble must not block field readings
			s.log.Warn("reading ingest limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			s.obsMetrics.RecordRateLimitDenied("reading_ingest", "meter_rate")
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed("reading_ingest")
		c.Next()
	}
}
