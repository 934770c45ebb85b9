package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

// ActivityRecorder persists activity entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry models.ActivityLog)
}

// Activity records an entry after a successful request.
func Activity(recorder ActivityRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := models.ActivityLog{
			Action:    action,
			Resource:  resource,
			Message:   fmt.Sprintf("%s %s -> %d in %dms", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Milliseconds()),
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims := Claims(c); claims != nil {
			actor := claims.AccountID
			entry.ActorID = &actor
		}
		if id := c.GetString(ResourceIDKey); id != "" {
			entry.ResourceID = &id
		} else if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		recorder.Record(c.Request.Context(), entry)
	}
}

// ResourceIDKey lets a handler name the resource it created, which has no :id parameter yet.
const ResourceIDKey = "activity_resource_id"
