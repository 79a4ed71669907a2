package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"vidsum-ai-api/internal/interfaces/http/dto"
	"vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
)

// Recovery Panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					fmt.Errorf("%v", rec),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				dto.Fail(c, errors.ErrInternalError)
				c.Abort()
			}
		}()
		c.Next()
	}
}
