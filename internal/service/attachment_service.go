package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/storage"
	"github.com/google/uuid"
)

// Uploader is the blob storage provider
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*storage.UploadResult, error)
}

// DefaultMaxAttachmentSize caps uploads at 50MB
const DefaultMaxAttachmentSize int64 = 50 << 20

// AttachmentService turns uploaded files into Attachment records
type AttachmentService struct {
	uploader Uploader
	maxSize  int64
}

// NewAttachmentService creates an AttachmentService. A nil uploader makes
// every upload fail with common.ErrStorageUnavailable.
func NewAttachmentService(uploader Uploader, maxSize int64) *AttachmentService {
	if maxSize <= 0 {
		maxSize = DefaultMaxAttachmentSize
	}
	return &AttachmentService{uploader: uploader, maxSize: maxSize}
}

// Upload stores the file under the chat and returns its Attachment
func (s *AttachmentService) Upload(ctx context.Context, userID, chatID, filename, contentType string, size int64, body io.Reader) (*domain.Attachment, error) {
	if userID == "" {
		return nil, common.ErrUnauthenticated
	}
	if s.uploader == nil {
		return nil, common.ErrStorageUnavailable
	}
	if size <= 0 || size > s.maxSize {
		return nil, fmt.Errorf("%w: file size must be between 1 and %d bytes", common.ErrInvalidInput, s.maxSize)
	}
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: file name is required", common.ErrInvalidInput)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := s.uploader.Upload(ctx, storage.GenerateKey(chatID, name), body, contentType, size)
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{
		ID:       uuid.NewString(),
		Type:     domain.AttachmentTypeOf(contentType),
		URL:      res.URL,
		Name:     name,
		Size:     res.Size,
		MimeType: contentType,
	}, nil
}
