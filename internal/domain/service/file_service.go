package service

import (
	"context"
	"io"
)

// FileUploadService stores public objects and returns their URL.
type FileUploadService interface {
	UploadFile(ctx context.Context, file io.Reader, size int64, fileType, folder string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
	Close() error
}
