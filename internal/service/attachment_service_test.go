package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUploader is a mock implementation of Uploader
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*storage.UploadResult, error) {
	args := m.Called(ctx, key, body, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadResult), args.Error(1)
}

func TestAttachmentService_Upload(t *testing.T) {
	up := new(MockUploader)
	svc := NewAttachmentService(up, 1024)
	body := strings.NewReader("png-bytes")

	up.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "chats/c1/") && strings.HasSuffix(key, ".png")
	}), body, "image/png", int64(9)).
		Return(&storage.UploadResult{URL: "https://cdn/x.png", Size: 9}, nil).Once()

	att, err := svc.Upload(context.Background(), "u1", "c1", "../photo.png", "image/png", 9, body)
	require.NoError(t, err)
	assert.Equal(t, domain.AttachmentImage, att.Type)
	assert.Equal(t, "photo.png", att.Name)
	assert.Equal(t, "https://cdn/x.png", att.URL)
	assert.NotEmpty(t, att.ID)
	up.AssertExpectations(t)
}

func TestAttachmentService_Rejects(t *testing.T) {
	up := new(MockUploader)
	svc := NewAttachmentService(up, 10)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "", "c1", "a.txt", "text/plain", 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = svc.Upload(ctx, "u1", "c1", "a.txt", "text/plain", 11, strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = NewAttachmentService(nil, 0).Upload(ctx, "u1", "c1", "a.txt", "text/plain", 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	up.On("Upload", mock.Anything, mock.Anything, mock.Anything, "application/octet-stream", int64(1)).
		Return(nil, errors.New("s3 down")).Once()
	_, err = svc.Upload(ctx, "u1", "c1", "blob", "", 1, strings.NewReader("x"))
	assert.EqualError(t, err, "s3 down")
	up.AssertExpectations(t)
}
