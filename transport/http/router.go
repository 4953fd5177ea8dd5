package http

import (
	"github.com/gin-gonic/gin"

	"github.com/layer-3/presence/ports"
	"github.com/layer-3/presence/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(enrollment *service.EnrollmentService, verification *service.VerificationService, store ports.Store, tokenizer ports.Tokenizer) *gin.Engine {
	router := gin.Default()

	handlers := NewVerificationHandlers(enrollment, verification, store, tokenizer)

	// Public verification routes
	v := router.Group("/verification")
	{
		v.POST("/enroll", handlers.Enroll)
		v.POST("/verify", handlers.Verify)
	}

	// Routes requiring a valid presence token
	api := router.Group("/api")
	api.Use(PresenceMiddleware(tokenizer))
	{
		api.GET("/history", handlers.History)
	}

	return router
}
