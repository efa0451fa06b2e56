package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures the object-storage artifact backend. URLTTL bounds the
// lifetime of presigned report links; zero means defaultPresignTTL.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration
}

const defaultPresignTTL = time.Hour

// batchPrefix is the object-key namespace holding one batch's artifacts.
// Keeping batches under a common root leaves the rest of the bucket free for
// other uses.
func batchPrefix(batchID string) string {
	return "batches/" + batchID + "/"
}

// S3Store persists batch artifacts as objects under batches/<id>/<path>,
// tagged with the MIME type the path implies so transcripts and reports are
// served as JSON.
type S3Store struct {
	client *minio.Client
	bucket string
	region string
	urlTTL time.Duration

	initOnce sync.Once
	initErr  error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, errors.New("s3 endpoint is required")
	case strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "":
		return nil, errors.New("s3 credentials are required")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("s3 bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &S3Store{client: client, bucket: cfg.Bucket, region: cfg.Region, urlTTL: ttl}, nil
}

// ensureBucket creates the bucket on first use so a fresh minio instance
// works without manual setup.
func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("check bucket %s: %w", s.bucket, err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			s.initErr = fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	})
	return s.initErr
}

func (s *S3Store) Put(ctx context.Context, batchID, path string, content []byte) error {
	batchID, path, err := cleanKey(batchID, path)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	key := batchPrefix(batchID) + path
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentTypeFor(path)})
	if err != nil {
		return fmt.Errorf("put artifact %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, batchID, path string) ([]byte, error) {
	batchID, path, err := cleanKey(batchID, path)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	key := batchPrefix(batchID) + path
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return content, nil
}

// GetURL presigns a time-limited download link for the object. The link
// forces an attachment disposition so report files download under their own
// name instead of rendering inline.
func (s *S3Store) GetURL(ctx context.Context, batchID, path string) (string, error) {
	batchID, path, err := cleanKey(batchID, path)
	if err != nil {
		return "", err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	filename := path[strings.LastIndexByte(path, '/')+1:]
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))

	key := batchPrefix(batchID) + path
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign artifact %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *S3Store) List(ctx context.Context, batchID string) ([]string, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, errors.New("batch id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	prefix := batchPrefix(batchID)
	var paths []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list artifacts for %s: %w", batchID, obj.Err)
		}
		paths = append(paths, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(paths)
	return paths, nil
}
