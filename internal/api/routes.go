package api

import (
	"net/http"

	"gymtrack/workout-app/internal/cache"
	"gymtrack/workout-app/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	workoutService service.WorkoutService,
	viewCache *cache.ViewCache,
) {
	authHandler := NewAuthHandler(authService)
	sessionHandler := NewSessionHandler(workoutService)
	progressHandler := NewProgressHandler(workoutService, viewCache)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		// --- Workout Session Routes ---
		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.POST("", sessionHandler.StartSession)
			workoutGroup.GET("", sessionHandler.GetHistory)
			workoutGroup.GET("/:id", sessionHandler.GetSession)
			workoutGroup.PUT("/:id/sets", sessionHandler.LogSets)
			// The completion engine: atomic aggregates + records + progress
			workoutGroup.POST("/:id/complete", sessionHandler.CompleteSession)
			workoutGroup.POST("/:id/abort", sessionHandler.AbortSession)
		}

		// --- Record & Progress Views ---
		protected.GET("/records", progressHandler.GetRecords)
		protected.GET("/progress", progressHandler.GetProgress)
	}
}
