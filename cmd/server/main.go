// Package main is the entry point of the CV chat service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cv-chat-go/internal/config"
	"cv-chat-go/internal/handler"
	"cv-chat-go/internal/middleware"
	"cv-chat-go/pkg/kafka"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "cv-chat",
	Short:        "Question answering over uploaded CVs",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./configs/config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd, deleteCmd, tokenCmd, auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and starts the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	config.Conf = *cfg
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if a.asyncIngestion() {
		go kafka.StartConsumer(ctx, cfg.Kafka, a.rdb, a.ingestionService)
	} else {
		log.Info("asynchronous ingestion disabled: Kafka, Redis and MinIO are all required")
	}

	if cfg.Audit.Cron != "" {
		if err := a.auditService.Start(cfg.Audit.Cron); err != nil {
			return fmt.Errorf("schedule audit: %w", err)
		}
		defer a.auditService.Stop()
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS())

	var auth gin.HandlerFunc
	if cfg.JWT.Secret != "" {
		auth = middleware.AuthMiddleware(token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours))
	} else {
		log.Warnf("jwt.secret is empty, the API is unauthenticated")
	}

	handler.RegisterRoutes(r, handler.Handlers{
		CV:           handler.NewCVHandler(a.corpusService, a.ingestionService),
		Chat:         handler.NewChatHandler(a.chatService, a.corpusService),
		Conversation: handler.NewConversationHandler(a.conversationService),
		Ingestion:    handler.NewIngestionHandler(a.ingestionService),
	}, auth)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	// stop the consumer before the server drains
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
