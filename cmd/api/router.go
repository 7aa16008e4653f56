package api

import (
	"net/http"

	"karmaterra-backend/internal/auth/delivery"
	authUsecase "karmaterra-backend/internal/auth/usecase"
	pushDelivery "karmaterra-backend/internal/push/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, pushHandler *pushDelivery.PushHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Push routes (protected)
		push := api.Group("/push")
		push.Use(delivery.AuthMiddleware(authUsecase))
		{
			push.POST("/tokens", pushHandler.RegisterToken)
			push.GET("/tokens", pushHandler.GetTokens)
			push.DELETE("/tokens/:token", pushHandler.DeleteToken)
			push.GET("/notifications", pushHandler.GetNotifications)
			push.POST("/notifications/:id/read", pushHandler.MarkRead)
			push.POST("/route", pushHandler.Route)
		}

		// Admin routes (X-Admin-Key)
		admin := api.Group("/admin")
		admin.Use(delivery.AdminMiddleware(authUsecase))
		{
			admin.POST("/notifications", pushHandler.SendNotification)
		}
	}
}
