package router

import (
	"github.com/gin-gonic/gin"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, animationHandler *handler.AnimationHandler) {
	// 动画生成
	animations := v1.Group("/animations")
	{
		animations.POST("", animationHandler.Submit)
		animations.POST("/sync", animationHandler.Generate)
	}

	// 任务查询
	jobs := v1.Group("/jobs")
	{
		jobs.GET("", animationHandler.ListJobs)
		jobs.GET("/:jid", animationHandler.GetJob)
	}
}
