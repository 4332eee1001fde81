package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nkoval/supportkb/config"
	"github.com/nkoval/supportkb/db"
	"github.com/nkoval/supportkb/handlers"
	"github.com/nkoval/supportkb/internal/utils"
	"github.com/nkoval/supportkb/kb"
	"github.com/nkoval/supportkb/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging).Sugar()
	defer logger.Sync()

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("postgres: failed to connect: %v", err)
	}
	defer postgres.Close()

	if err := postgres.Ping(ctx); err != nil {
		logger.Fatalf("postgres: ping failed: %v", err)
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		logger.Fatalf("postgres: ensure schema: %v", err)
	}

	kbStore := kb.Load(cfg.KBDir, cfg.SystemPromptPath, logger)
	relay := services.NewRelayService(cfg, kbStore.SystemPrompt(), logger)

	router := setupRouter(cfg, postgres, kbStore, relay, logger)

	// No WriteTimeout: chat responses stream for as long as the model generates.
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
	}

	logger.Info("server stopped cleanly")
}

func setupRouter(cfg *config.Config, postgres *db.Postgres, kbStore *kb.Store, relay *services.RelayService, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	chat := handlers.NewChatHandler(postgres, kbStore, relay, logger)
	conversations := handlers.NewConversationHandler(postgres, cfg.AdminPassword, logger)
	kbAdmin := handlers.NewKBHandler(kb.NewAdmin(cfg.KBDir), logger)
	models := handlers.NewModelHandler(cfg.DefaultModel)

	apiGroup := router.Group("/api")
	apiGroup.POST("/chat", chat.HandleChat)
	apiGroup.GET("/conversations", conversations.HandleGet)
	apiGroup.DELETE("/conversations", conversations.HandleDelete)
	apiGroup.GET("/kb", kbAdmin.HandleList)
	apiGroup.POST("/kb", kbAdmin.HandleSave)
	apiGroup.PUT("/kb", kbAdmin.HandleSave)
	apiGroup.DELETE("/kb", kbAdmin.HandleDelete)
	apiGroup.GET("/models", models.HandleList)

	return router
}
