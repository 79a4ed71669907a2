package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"vidsum-ai-api/internal/domain/repository"
)

// BindPagination 从查询参数绑定分页，非法值回退默认值
func BindPagination(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), 20),
	)
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindVideoID 从 URI 绑定视频 ID
func BindVideoID(c *gin.Context) string {
	return c.Param("id")
}

// BindJobID 从 URI 绑定任务 ID
func BindJobID(c *gin.Context) string {
	return c.Param("id")
}
