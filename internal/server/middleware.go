package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/turnos/internal/observability/context"
	obslogger "github.com/smallbiznis/turnos/internal/observability/logger"
)

const contextActorKey = "actor_id"

// ActorRequired rejects mutating requests that do not name who performs
// them. Authentication happens upstream; the header is trusted as is.
func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(obslogger.HeaderActorID))
		if actor == "" {
			AbortWithError(c, ErrActorRequired)
			return
		}
		c.Set(contextActorKey, actor)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), obscontext.ActorTypeUser, actor))
		c.Next()
	}
}

func actorFrom(c *gin.Context) string {
	if actor := c.GetString(contextActorKey); actor != "" {
		return actor
	}
	_, actor := obscontext.ActorFromContext(c.Request.Context())
	return actor
}
