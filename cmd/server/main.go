// Command server runs the troubleshooting advisor HTTP API.
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

	"github.com/gin-gonic/gin"

	"advisor-gpt-go/internal/config"
	"advisor-gpt-go/internal/handler"
	"advisor-gpt-go/pkg/log"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialised")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatal("startup failed", err)
	}
	defer app.Close()

	if app.consumer != nil {
		go func() {
			if err := app.consumer.Run(ctx, cfg.Kafka); err != nil {
				log.Error("Kafka consumer exited", err)
			}
		}()
	}

	go func() {
		n, err := app.documents.IngestDirectory(ctx, cfg.Ingest.SeedDir)
		if err != nil {
			log.Warnf("seed ingestion finished with errors (%d ingested): %v", n, err)
		}
	}()

	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(app.handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP listen failed: %s", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", err)
	}
	log.Info("server stopped")
}
