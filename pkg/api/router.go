// Package api HTTP API服务
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/sched-engine/pkg/api/handler"
	"github.com/stevelan1995/sched-engine/pkg/api/middleware"
	"github.com/stevelan1995/sched-engine/pkg/core/engine"
)

// SetupRouter 设置路由
func SetupRouter(eng *engine.Engine, version string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	scheduleHandler := handler.NewScheduleHandler(eng)
	streamHandler := handler.NewStreamHandler(eng)
	healthHandler := handler.NewHealthHandler(version)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		schedules := v1.Group("/schedules")
		{
			schedules.GET("", scheduleHandler.List)
			schedules.POST("", scheduleHandler.Submit)
			schedules.GET("/:id", scheduleHandler.Get)
			schedules.DELETE("/:id", scheduleHandler.Delete)
		}

		v1.GET("/fleet", scheduleHandler.Fleet)
		v1.GET("/events", streamHandler.Events)
	}

	return router
}
