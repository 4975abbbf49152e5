package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/config"
	"github.com/suPer8Hu/travel-assistant/internal/httpapi/handlers"
	"github.com/suPer8Hu/travel-assistant/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// auth
	r.POST("/auth/", h.CreateUser)
	r.POST("/auth/token", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/users/:id", h.GetUserByID)

	// Chat (JWT required)
	authGroup.POST("/chat/chats/", h.CreateChat)
	authGroup.GET("/chat/users/:id/chats/", h.ListUserChats)
	authGroup.POST("/chat/", h.SendChatMessage)
	authGroup.POST("/chat/jobs", h.SendChatMessageAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)
	authGroup.GET("/chat/:chat_id", h.GetChatHistory)

	// Destinations
	authGroup.GET("/destinations", h.ListDestinations)
	authGroup.POST("/destinations", h.CreateDestination)
	authGroup.GET("/destinations/:id", h.GetDestination)
	authGroup.PUT("/destinations/:id", h.UpdateDestination)
	authGroup.DELETE("/destinations/:id", h.DeleteDestination)
	authGroup.GET("/dynamic_filters", h.DynamicFilters)
	return r
}
