// Package r2 reads full-resolution originals from an S3-compatible bucket
// (Cloudflare R2 in production).
package r2

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxPresignTTL is the longest expiry S3 signatures allow.
const MaxPresignTTL = 7 * 24 * time.Hour

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// MaxRetries bounds attempts per request; 0 keeps the client default.
	MaxRetries int
}

func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("r2: originals bucket is not configured")
	}
	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:      credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:     secure,
		Region:     "auto",
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("r2: create client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// splitEndpoint accepts either a bare host or a URL.
func splitEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("r2: invalid endpoint %q", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

// Exists is (false, nil) only when the bucket answers that the key is absent.
// Any other failure is returned as an error.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket") {
		return false, nil
	}
	return false, fmt.Errorf("r2: stat %s: %w", key, err)
}

func (s *Store) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > MaxPresignTTL {
		ttl = MaxPresignTTL
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("r2: presign %s: %w", key, err)
	}
	return u.String(), nil
}
