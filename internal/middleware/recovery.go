package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/userdash/pkg/errors"
	"github.com/charlesng35/userdash/pkg/response"
)

func recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("status handler panicked",
					zap.String("request_id", c.Writer.Header().Get(RequestIDHeader)),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
				)
				response.Error(c, appErrors.ErrInternal)
			}
		}()
		c.Next()
	}
}

// NotFound answers unknown routes with the API error envelope.
func NotFound(c *gin.Context) {
	response.Error(c, appErrors.NewServerError(http.StatusNotFound, fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}
