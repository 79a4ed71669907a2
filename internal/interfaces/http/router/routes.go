package router

import (
	"github.com/gin-gonic/gin"

	"vidsum-ai-api/internal/interfaces/http/handler"
)

// RegisterLegacyRoutes 注册无版本前缀的兼容路由
func RegisterLegacyRoutes(r gin.IRouter, videoHandler *handler.VideoHandler, searchHandler *handler.SearchHandler) {
	r.POST("/summarize_video", videoHandler.SummarizeVideo)
	r.GET("/keyword_summarize", searchHandler.KeywordSummarize)
}

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	videoHandler *handler.VideoHandler,
	searchHandler *handler.SearchHandler,
	jobHandler *handler.JobHandler,
) {
	v1.POST("/transcripts", videoHandler.ProcessTranscript)
	v1.POST("/keyword_summarize", searchHandler.FocusedSummarize)

	videos := v1.Group("/videos")
	{
		videos.GET("", videoHandler.ListVideos)
		videos.GET("/:id", videoHandler.GetVideo)
		videos.DELETE("/:id", videoHandler.DeleteVideo)
	}

	jobs := v1.Group("/jobs")
	{
		jobs.POST("", jobHandler.SubmitJob)
		jobs.GET("/:id", jobHandler.GetJob)
	}
}
