package app

import (
	"context"
	"fmt"

	"annotify/internal/annotator"
	"annotify/internal/engine"
	"annotify/internal/gateway/config"
	"annotify/internal/gateway/handler"
	"annotify/internal/gateway/server"
	batchsvc "annotify/internal/gateway/service/batch"
)

type App struct {
	server  *server.Server
	client  annotator.Client
	batches *batchsvc.Service
	cancel  context.CancelFunc
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	artifactStore, err := initArtifactStore(cfg)
	if err != nil {
		return nil, err
	}
	archiveRepo, err := initArchive(cfg)
	if err != nil {
		return nil, err
	}
	client, err := initAnnotatorClient(cfg)
	if err != nil {
		return nil, err
	}

	ctrl := engine.NewController(annotator.New(client), cfg.Annotator.Timeout)
	batches := batchsvc.New(ctrl, artifactStore, archiveRepo, batchsvc.Options{
		MaxArtifacts: cfg.Batch.MaxArtifacts,
		TTL:          cfg.Batch.TTL,
	})

	evictCtx, cancel := context.WithCancel(context.Background())
	batches.StartEviction(evictCtx, 0)

	batchHandler := handler.NewBatchHandler(batches)

	// Routing & Server
	mux := server.NewMux(batchHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server:  srv,
		client:  client,
		batches: batches,
		cancel:  cancel,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.cancel()
	if a.client != nil {
		_ = a.client.Close()
	}
	return a.server.Shutdown(ctx)
}
