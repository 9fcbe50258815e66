package port

import (
	"context"
	"io"
)

type MediaStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadArtifact(ctx context.Context, objectKey string, contentType string, reader io.Reader, size int64) error
	FetchArtifact(ctx context.Context, objectKey string) ([]byte, error)
}
