// Package mockapi is a gin implementation of the exam platform's HTTP
// contract against an in-memory store. It exists for offline development of
// the client and as the far end of the gateway's integration tests; it is
// not, and must not become, a real backend.
package mockapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/api"
	"github.com/stemsi/exstem-client/internal/config"
)

// NewServer builds the gin engine with all contract routes mounted under
// /api, mirroring the real backend's base path.
func NewServer(cfg *config.Config, store *Store, log zerolog.Logger) *gin.Engine {
	setupValidator()

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", api.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{api.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(api.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		api.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	tokens := NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	h := NewHandler(store, tokens, log)

	root := router.Group("/api")
	{
		root.POST("/login", h.Login)
		root.POST("/register", h.Register)

		authed := root.Group("")
		authed.Use(h.requireAuth())
		{
			authed.GET("/me", h.Me)
			authed.POST("/logout", h.Logout)

			authed.GET("/exams", h.ListExams)
			authed.GET("/exams/:examId", h.GetExam)
			authed.POST("/exams/:examId/start", h.StartExam)
			authed.GET("/exams/:examId/results", h.ExamResults)

			authed.POST("/attempts/:attemptId/answer", h.SaveAnswer)
			authed.GET("/attempts/:attemptId", h.GetAttempt)
			authed.POST("/attempts/:attemptId/submit", h.SubmitAttempt)

			authed.GET("/results", h.Results)
		}
	}

	return router
}
