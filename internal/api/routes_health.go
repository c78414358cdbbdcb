package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func registerHealthRoutes(r *gin.Engine, deps Dependencies) {
	r.GET("/healthz", func(c *gin.Context) {
		authenticated := deps.Session != nil && deps.Session.IsAuthenticated()
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"authenticated": authenticated,
			"checked_at":    time.Now().UTC(),
		})
	})
}
