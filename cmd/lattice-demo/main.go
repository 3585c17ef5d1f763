package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mdcpepper/lattice/config"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotionapi"
	"github.com/mdcpepper/lattice/pkg/logger"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.App.Environment, cfg.App.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	log.WithField("version", cfg.App.Version).Info("Starting promotion engine demo server")

	back := backend.NewBranchAndBound(cfg.Solver.MaxBranchAndBoundNodes, cfg.Solver.CoefficientEpsilon)
	handler := promotionapi.NewHandler(back)

	r := chi.NewRouter()
	r.Use(promotionapi.RequestID)
	r.Use(promotionapi.NewCORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
		cfg.CORS.ExposedHeaders,
		cfg.CORS.AllowCredentials,
		cfg.CORS.MaxAge,
	))
	handler.RegisterRoutes(r)

	log.Info("Promotion engine routes registered")

	srv := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("address", srv.Addr).Info("Promotion engine demo server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down promotion engine demo server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Promotion engine demo server stopped")
}
