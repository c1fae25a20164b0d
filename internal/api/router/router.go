package router

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"questionbox/internal/api/handlers/push"
	"questionbox/internal/api/handlers/question"
	"questionbox/internal/middlewares"
)

func New(questionHandler *question.Handler, pushHandler *push.Handler) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	e.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	{
		questions := api.Group("/questions")
		{
			questions.POST("", questionHandler.Create)
			questions.GET("", questionHandler.GetAll)
			questions.GET("/:id/status", questionHandler.GetStatus)
		}

		pushGroup := api.Group("/push")
		{
			pushGroup.POST("/register", pushHandler.Register)
			pushGroup.POST("/send", pushHandler.Send)
			pushGroup.POST("/promote", pushHandler.Promote)
			pushGroup.POST("/tokens", pushHandler.ListTokens)
		}

		api.POST("/notify/question", pushHandler.NotifyQuestion)
	}

	return e
}
