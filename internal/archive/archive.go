// Package archive exports plans as JSON to S3-compatible storage and hands out
// pre-signed download URLs. When no bucket is configured the Noop archiver is
// used and every operation reports ErrNotConfigured.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/vision/internal/config"
	"github.com/hyperengineering/vision/internal/types"
)

// ErrNotConfigured is returned when archive storage is not configured.
var ErrNotConfigured = errors.New("plan archive storage not configured")

// Archiver stores plan exports.
type Archiver interface {
	// ArchivePlan uploads the plan with its tactics and returns the object key.
	ArchivePlan(ctx context.Context, plan *types.PlanWithTactics) (string, error)

	// PresignedURL returns a time-limited download URL for an object key.
	PresignedURL(ctx context.Context, key string) (url string, expiry time.Time, err error)
}

// Export is the document written for each archived plan.
type Export struct {
	ExportedAt time.Time             `json:"exported_at"`
	Plan       types.PlanWithTactics `json:"plan"`
}

// s3Client is the subset of minio.Client used here.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Archiver writes plan exports to an S3-compatible bucket.
type S3Archiver struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
	now       func() time.Time
}

// ArchivePlan uploads the plan as JSON under {user_id}/plans/{plan_id}.json.
func (a *S3Archiver) ArchivePlan(ctx context.Context, plan *types.PlanWithTactics) (string, error) {
	if plan == nil {
		return "", errors.New("archive: nil plan")
	}
	body, err := json.MarshalIndent(Export{ExportedAt: a.now().UTC(), Plan: *plan}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode plan export: %w", err)
	}

	key := ObjectKey(plan.Plan.UserID, plan.Plan.ID)
	if err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", fmt.Errorf("upload plan export to S3: %w", err)
	}
	return key, nil
}

// PresignedURL returns a pre-signed GET URL for key.
func (a *S3Archiver) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	presigned, err := a.client.PresignedGetObject(ctx, a.bucket, key, a.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), a.now().Add(a.urlExpiry), nil
}

// Noop is used when archive storage is not configured.
type Noop struct{}

// ArchivePlan returns ErrNotConfigured.
func (Noop) ArchivePlan(ctx context.Context, plan *types.PlanWithTactics) (string, error) {
	return "", ErrNotConfigured
}

// PresignedURL returns ErrNotConfigured.
func (Noop) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// New returns Noop when the bucket is empty and an S3Archiver otherwise.
func New(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return Noop{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Archiver{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: time.Duration(cfg.URLExpiry),
		now:       time.Now,
	}, nil
}

// ObjectKey returns the object key of a plan export.
func ObjectKey(userID, planID string) string {
	return userID + "/plans/" + planID + ".json"
}
