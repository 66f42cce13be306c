package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
)

const (
	TraceIDHeader   = "X-Trace-ID"
	traceIDStoreKey = "trace_id"
)

// TraceID assigns every request an id, echoes it in the response header
// and threads it through the request context so log entries written
// below the handler carry it.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(traceIDStoreKey, traceID)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(traceIDStoreKey); exists {
		return traceID.(string)
	}
	return logger.TraceIDFromContext(c.Request.Context())
}
