package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"annotify/internal/gateway/app"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("annotify-api: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New()
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.Start() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	stop()

	log.Println("shutdown signal received, draining")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
