package notify

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"lookmate_back/authorization"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the notification endpoints and returns the shared
// center. NOTIFY_TTL_SECONDS overrides the default one minute expiry.
func RegisterRoutes(router *gin.Engine, guard *authorization.Guard) *Center {
	ttl := time.Minute
	if raw := strings.TrimSpace(os.Getenv("NOTIFY_TTL_SECONDS")); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			ttl = time.Duration(seconds) * time.Second
		}
	}
	center := NewCenter(ttl)

	group := router.Group("/notifications")
	if guard != nil {
		group.Use(guard.RequireAuthenticated())
	} else {
		group.Use(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization middleware missing"})
		})
	}

	group.GET("", func(c *gin.Context) {
		userID := authorization.CurrentUserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": center.List(userID)})
	})

	group.DELETE("/:id", func(c *gin.Context) {
		userID := authorization.CurrentUserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !center.Dismiss(userID, c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"dismissed": true})
	})

	return center
}
