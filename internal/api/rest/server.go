package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewRouter собирает маршруты. outputDir раздаётся как /img для просмотрщика.
func NewRouter(h *Handler, outputDir string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	router.GET("/health", h.HealthCheck)
	router.POST("/predict", h.Predict)
	router.GET("/runs", h.ListRuns)
	router.GET("/runs/:id", h.GetRun)

	if outputDir != "" {
		router.Static("/img", outputDir)
	}
	return router
}

// corsMiddleware разрешает запросы редактора с любого origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func NewServer(addr string, router http.Handler, log *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Minute,
			// Инференс может занимать десятки секунд.
			WriteTimeout:   2 * time.Minute,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		log: log,
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
