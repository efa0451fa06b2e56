package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"annotify/internal/engine"
)

type Config struct {
	Port      string
	Env       string
	Artifact  ArtifactConfig
	Annotator AnnotatorConfig
	Batch     BatchConfig
	ArchiveDB string
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PgDSN     string
}

// CanUseS3 reports whether enough S3 settings are present to build a client.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled && a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != "" && a.Bucket != ""
}

type AnnotatorConfig struct {
	Provider string // gemini | fake
	Model    string
	Timeout  time.Duration
}

type BatchConfig struct {
	MaxArtifacts int
	TTL          time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:      *port,
		Env:       env,
		Artifact:  loadArtifactConfig(env),
		Annotator: loadAnnotatorConfig(),
		Batch:     loadBatchConfig(),
		ArchiveDB: strings.TrimSpace(os.Getenv("ARCHIVE_DB_PATH")),
	}, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "annotify-artifacts"),
		UseSSL:    resolveArtifactUseSSL(env),
		PgDSN:     strings.TrimSpace(os.Getenv("ARTIFACT_PG_DSN")),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func loadAnnotatorConfig() AnnotatorConfig {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("ANNOTATE_PROVIDER")))
	if provider == "" {
		if strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "" {
			provider = "gemini"
		} else {
			provider = "fake"
		}
	}
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("ANNOTATE_TIMEOUT_MS")); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return AnnotatorConfig{
		Provider: provider,
		Model:    firstNonEmpty(strings.TrimSpace(os.Getenv("ANNOTATE_MODEL")), "gemini-2.0-flash"),
		Timeout:  timeout,
	}
}

func loadBatchConfig() BatchConfig {
	maxArtifacts := engine.DefaultMaxArtifacts
	if raw := strings.TrimSpace(os.Getenv("BATCH_MAX_ARTIFACTS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxArtifacts = n
		}
	}
	ttl := 2 * time.Hour
	if raw := strings.TrimSpace(os.Getenv("BATCH_TTL_MS")); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			ttl = time.Duration(ms) * time.Millisecond
		}
	}
	return BatchConfig{MaxArtifacts: maxArtifacts, TTL: ttl}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
