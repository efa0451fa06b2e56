package app

import (
	"context"
	"fmt"
	"log"

	"annotify/internal/annotator"
	"annotify/internal/gateway/config"
	archiverepo "annotify/internal/gateway/repository/archive"
	artifactrepo "annotify/internal/gateway/repository/artifact"
)

// initArtifactStore picks the artifact backend: S3 when fully configured,
// otherwise postgres when a DSN is set, otherwise in-memory. Every backend is
// wrapped in the LRU read cache.
func initArtifactStore(cfg *config.Config) (artifactrepo.Store, error) {
	var origin artifactrepo.Store
	switch {
	case cfg.Artifact.CanUseS3():
		s3Store, err := artifactrepo.NewS3Store(artifactrepo.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		log.Printf("artifact store: s3 bucket=%s endpoint=%s", cfg.Artifact.Bucket, cfg.Artifact.Endpoint)
		origin = s3Store
	case cfg.Artifact.PgDSN != "":
		pgStore, err := artifactrepo.NewPostgresStoreDSN(cfg.Artifact.PgDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact postgres store: %w", err)
		}
		log.Printf("artifact store: postgres")
		origin = pgStore
	default:
		log.Printf("artifact store: in-memory")
		origin = artifactrepo.NewMemoryStore()
	}
	return artifactrepo.NewCachedStore(origin, 0)
}

// initArchive opens the sqlite batch archive, or disables archival when no
// path is configured.
func initArchive(cfg *config.Config) (archiverepo.Repository, error) {
	if cfg.ArchiveDB == "" {
		log.Printf("batch archive: disabled")
		return nil, nil
	}
	store, err := archiverepo.NewSQLiteStore(cfg.ArchiveDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize batch archive: %w", err)
	}
	log.Printf("batch archive: sqlite path=%s", cfg.ArchiveDB)
	return store, nil
}

// initAnnotatorClient builds the model client plus the standard middleware
// chain. The fake client keeps local development keyless.
func initAnnotatorClient(cfg *config.Config) (annotator.Client, error) {
	var inner annotator.Client
	switch cfg.Annotator.Provider {
	case "gemini":
		client, err := annotator.NewGeminiClient(context.Background(), cfg.Annotator.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		inner = client
	default:
		log.Printf("annotator: using fake client (set GEMINI_API_KEY for gemini)")
		inner = annotator.NewFakeClient()
	}
	return annotator.Wrap(inner,
		annotator.Logging(),
		annotator.Retry(3, 0),
		annotator.RateLimitFromEnv("ANNOTATE", "GEMINI"),
	), nil
}
