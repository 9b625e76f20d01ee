package storage

import (
	"context"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *AudioArchive {
	t.Helper()
	// Region pinned so presigning never needs a bucket-location lookup.
	client, err := minio.New("minio.local:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("test-access", "test-secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &AudioArchive{
		client:    client,
		bucket:    "speech-audio",
		publicURL: "http://minio.local:9000",
	}
}

func TestArchiveDisabledIsNilSafe(t *testing.T) {
	var archive *AudioArchive

	assert.False(t, archive.Enabled())

	_, err := archive.Upload(context.Background(), "speech_te_abcd1234.mp3", []byte("x"), "audio/mpeg")
	assert.Error(t, err)

	_, err = archive.PresignedURL(context.Background(), "speech_te_abcd1234.mp3", time.Minute)
	assert.Error(t, err)
}

func TestArchivePresignedURL(t *testing.T) {
	archive := newTestArchive(t)

	signed, err := archive.PresignedURL(context.Background(), "speech_te_abcd1234.mp3", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "speech-audio/speech/speech_te_abcd1234.mp3")
	assert.Contains(t, signed, "X-Amz-Signature=")
}

func TestArchivePresignedURLStripsPathSegments(t *testing.T) {
	archive := newTestArchive(t)

	signed, err := archive.PresignedURL(context.Background(), "../../etc/speech_te_abcd1234.mp3", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "speech/speech_te_abcd1234.mp3")
	assert.NotContains(t, signed, "etc")
}

func TestArchiveRejectsEmptyFilename(t *testing.T) {
	archive := newTestArchive(t)

	_, err := archive.Upload(context.Background(), "  ", []byte("x"), "audio/mpeg")
	assert.Error(t, err)

	_, err = archive.PresignedURL(context.Background(), "", time.Minute)
	assert.Error(t, err)
}

func TestArchivePublicURL(t *testing.T) {
	archive := newTestArchive(t)

	url := archive.buildPublicURL("speech/speech_te_abcd1234.mp3")
	assert.Equal(t, "http://minio.local:9000/speech-audio/speech/speech_te_abcd1234.mp3", url)
}
