package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medjournal/internal/handler"
	"medjournal/internal/middleware"
	"medjournal/internal/wallet"
)

type Server struct {
	router  *gin.Engine
	srv     *http.Server
	wallets *wallet.Manager
	logger  *zap.Logger
}

func NewServer(wallets *wallet.Manager, logger *zap.Logger) *Server {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s := &Server{
		router:  router,
		wallets: wallets,
		logger:  logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	entryHandler := handler.NewEntryHandler(s.wallets, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Connecting a wallet is what creates a session, so it stays public.
	s.router.POST("/api/wallet/connect", entryHandler.ConnectWallet)

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.SessionMiddleware(s.wallets, s.logger))
	{
		authRequired.POST("/wallet/disconnect", entryHandler.DisconnectWallet)
		authRequired.POST("/analyze", entryHandler.Analyze)
		authRequired.POST("/entries/confirm", entryHandler.Confirm)
		authRequired.POST("/abandon", entryHandler.Abandon)
		authRequired.GET("/status", entryHandler.Status)
		authRequired.GET("/entries", entryHandler.ListEntries)
		authRequired.GET("/entries/export", entryHandler.ExportEntries)
	}
}

func (s *Server) Run(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("Server starting", zap.String("address", addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
