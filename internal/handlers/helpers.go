package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func middlewareIdentity(c *gin.Context) (auth.Identity, bool) {
	return middleware.IdentityFromContext(c)
}

// callerIdentity aborts with 401 when the auth middleware did not run.
func callerIdentity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return auth.Identity{}, false
	}
	return identity, true
}

func auditUserID(identity auth.Identity) *int64 {
	if identity.UserID == 0 {
		return nil
	}
	id := int64(identity.UserID)
	return &id
}

func groupIDParam(c *gin.Context) (int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	return groupID, true
}
