package router

import (
	"github.com/gin-gonic/gin"
)

// InitEngineRouter 配置引擎状态、快照缓存与变化订阅路由
func InitEngineRouter(
	deps RouterDeps,
	r *gin.RouterGroup,
) {
	engineRouter := r.Group("/engine")
	{
		engineRouter.GET("/state", deps.EngineHandler.GetState)
		engineRouter.POST("/tick", deps.EngineHandler.Tick)
	}

	cacheRouter := r.Group("/cache")
	{
		cacheRouter.GET("/:type", deps.EngineHandler.ListCache)
		cacheRouter.GET("/:type/:id", deps.EngineHandler.GetCache)
	}

	membersRouter := r.Group("/members")
	{
		membersRouter.GET("/:type/:id", deps.EngineHandler.GetMembers)
	}

	r.GET("/events", deps.EngineHandler.ListEvents)

	// 变化事件推送
	if deps.Config.GetBool("relay.websocket.enabled") {
		membersRouter.GET("/:type/:id/ws", deps.EngineHandler.WatchMembers)
		r.GET("/events/ws", deps.EngineHandler.WatchEvents)
	}
}
