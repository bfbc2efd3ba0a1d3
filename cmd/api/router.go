package api

import (
	"net/http"

	"mentorhub-backend/internal/auth/delivery"
	authUsecase "mentorhub-backend/internal/auth/usecase"
	schedulerDelivery "mentorhub-backend/internal/scheduler/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, triggerHandler *schedulerDelivery.TriggerHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Operator routes (protected)
		admin := api.Group("/admin")
		admin.Use(delivery.AuthMiddleware(authUsecase), delivery.OperatorOnly())
		{
			admin.GET("/triggers", triggerHandler.ListTriggers)
			admin.POST("/triggers/:name/run", triggerHandler.RunTrigger)
			admin.POST("/kpi-reminders/run", triggerHandler.RunKPIReminders)
			admin.POST("/changes", triggerHandler.ReplayChange)
		}
	}
}
