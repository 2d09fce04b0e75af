package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eduport/portfolio/internal/config"
	internalhttp "eduport/portfolio/internal/http"
	"eduport/portfolio/internal/kv"
	"eduport/portfolio/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("storage open failed: %v", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Printf("storage close error: %v", err)
		}
	}()

	recordStore := store.New(backend)
	if cfg.SeedDemoData {
		if err := recordStore.Seed(ctx); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	server := internalhttp.NewServer(cfg, recordStore)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("eduport http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
