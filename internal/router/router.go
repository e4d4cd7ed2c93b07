package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomodoro/focus/internal/handler"
	"pomodoro/focus/internal/middleware"
)

type RateLimit struct {
	RPS   float64
	Burst int
}

func New(
	tokens middleware.TokenParser,
	settingsHandler *handler.SettingsHandler,
	pomodoroHandler *handler.PomodoroHandler,
	tokenHandler *handler.TokenHandler,
	corsOrigins []string,
	limit RateLimit,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	api.Use(middleware.Auth(tokens), middleware.RateLimit(limit.RPS, limit.Burst))
	api.POST("/token/refresh", tokenHandler.Refresh)

	pomodoro := api.Group("/pomodoro")
	pomodoro.GET("/settings", settingsHandler.Get)
	pomodoro.PUT("/settings", settingsHandler.Update)
	pomodoro.POST("/sessions", pomodoroHandler.SaveSession)
	pomodoro.GET("/sessions", pomodoroHandler.GetHistory)
	pomodoro.GET("/stats/daily", pomodoroHandler.Daily)
	pomodoro.GET("/stats/weekly", pomodoroHandler.Weekly)
	pomodoro.GET("/stats/streak", pomodoroHandler.Streak)

	return engine
}
