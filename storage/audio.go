package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AudioArchive mirrors synthesized audio artifacts into MinIO/S3 so they
// survive instance churn. It is entirely optional: deployments without the
// MINIO_* variables run disk-only and every method is a nil-safe no-op.
type AudioArchive struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewAudioArchiveFromEnv initialises the archive from MINIO_* environment
// variables. A partially-unset configuration returns (nil, nil).
func NewAudioArchiveFromEnv() (*AudioArchive, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	publicURL := strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL"))
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &AudioArchive{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Enabled reports whether uploads will actually go anywhere.
func (a *AudioArchive) Enabled() bool {
	return a != nil && a.client != nil
}

// Upload stores an audio artifact under speech/<filename> and returns the
// public URL of the object. Filenames are content-addressed upstream, so
// re-uploading the same name overwrites identical bytes harmlessly.
func (a *AudioArchive) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("audio archive not configured")
	}
	cleaned := strings.Trim(path.Base(strings.TrimSpace(filename)), "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("audio filename is empty")
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	objectName := path.Join("speech", cleaned)

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reader := bytes.NewReader(data)
	_, err := a.client.PutObject(uploadCtx, a.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=604800",
	})
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}

	return a.buildPublicURL(objectName), nil
}

// PresignedURL returns a temporary download URL for an archived artifact.
func (a *AudioArchive) PresignedURL(ctx context.Context, filename string, expiry time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("audio archive not configured")
	}
	cleaned := strings.Trim(path.Base(strings.TrimSpace(filename)), "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("audio filename is empty")
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	signed, err := a.client.PresignedGetObject(presignCtx, a.bucket, path.Join("speech", cleaned), expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign audio: %w", err)
	}
	return signed.String(), nil
}

func (a *AudioArchive) buildPublicURL(objectName string) string {
	base := strings.TrimSuffix(a.publicURL, "/")
	object := strings.TrimPrefix(objectName, "/")
	return fmt.Sprintf("%s/%s/%s", base, a.bucket, object)
}
