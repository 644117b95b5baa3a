// Package storage issues presigned URLs against S3-compatible object storage.
// Objects never pass through the API process.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Presigned URL lifetimes.
const (
	UploadURLTTL   = 5 * time.Minute
	DownloadURLTTL = 15 * time.Minute
)

// Bucket selects the public (avatars) or private (meeting assets) bucket.
type Bucket int

// Buckets.
const (
	Public Bucket = iota
	Private
)

// Folder is the top-level key prefix of an object.
type Folder string

// Known folders.
const (
	FolderCompanyAvatars Folder = "company-avatars"
	FolderMeetingNotes   Folder = "meetings-notes"
	FolderUserAvatars    Folder = "user-avatars"
)

// ErrNotFound is returned by Stat when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Store is the object storage used by services.
type Store interface {
	PresignPut(ctx context.Context, b Bucket, key string) (string, error)
	PresignGet(ctx context.Context, b Bucket, key string) (string, error)
	Stat(ctx context.Context, b Bucket, key string) error
	Remove(ctx context.Context, b Bucket, key string) error
	PublicURL(key string) string
	KeyFromURL(u string) string
}

// Config holds connection settings.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string //nolint:gosec // intentional: storage secret loaded from env
	Region        string
	UseSSL        bool
	PublicBucket  string
	PrivateBucket string
	PublicBaseURL string
}

// MinioStore implements Store with minio-go.
type MinioStore struct {
	client  *minio.Client
	buckets [2]string
	baseURL string
}

// New creates a MinioStore. No request is made until the first call.
func New(cfg Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint + "/" + cfg.PublicBucket
	}
	return &MinioStore{
		client:  client,
		buckets: [2]string{Public: cfg.PublicBucket, Private: cfg.PrivateBucket},
		baseURL: base,
	}, nil
}

// PresignPut returns a URL the client can PUT the object to.
func (s *MinioStore) PresignPut(ctx context.Context, b Bucket, key string) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.buckets[b], key, UploadURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}

// PresignGet returns a time-limited download URL.
func (s *MinioStore) PresignGet(ctx context.Context, b Bucket, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.buckets[b], key, DownloadURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return u.String(), nil
}

// Stat returns ErrNotFound when the object is missing.
func (s *MinioStore) Stat(ctx context.Context, b Bucket, key string) error {
	_, err := s.client.StatObject(ctx, s.buckets[b], key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrNotFound
		}
		return fmt.Errorf("stat %s: %w", key, err)
	}
	return nil
}

// Remove deletes the object.
func (s *MinioStore) Remove(ctx context.Context, b Bucket, key string) error {
	if err := s.client.RemoveObject(ctx, s.buckets[b], key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// PublicURL is the permanent URL of an object in the public bucket.
func (s *MinioStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// UniqueFileName prefixes fileName with 16 random bytes in hex.
func UniqueFileName(fileName string) string {
	return RandomHex(16) + "-" + fileName
}

// ObjectKey is <folder>/<ownerID>/<name>.
func ObjectKey(f Folder, ownerID, name string) string {
	return fmt.Sprintf("%s/%s/%s", f, ownerID, name)
}

// KeyFromURL returns the object key of a public URL, or "" when u does not
// point into the public bucket.
func (s *MinioStore) KeyFromURL(u string) string {
	key, ok := strings.CutPrefix(u, s.baseURL+"/")
	if !ok {
		return ""
	}
	return key
}
