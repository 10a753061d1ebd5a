package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"safespace/models"
	"safespace/store"
)

// MaxImageBytes caps a single upload.
const MaxImageBytes = 10 << 20

// image is an upload read into memory and sniffed.
type image struct {
	name        string
	contentType string
	data        []byte
}

func (i image) reader() io.Reader {
	return bytes.NewReader(i.data)
}

// readImage buffers the upload so it can be sent to moderation and storage,
// and rejects anything that is not an image.
func readImage(upload *models.Upload) (image, error) {
	if upload == nil || upload.Body == nil {
		return image{}, fmt.Errorf("%w: file is required", ErrValidation)
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, MaxImageBytes+1))
	if err != nil {
		return image{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return image{}, fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if len(data) > MaxImageBytes {
		return image{}, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, MaxImageBytes)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return image{}, fmt.Errorf("%w: %s is not an image", ErrValidation, mtype.String())
	}

	return image{name: upload.Name, contentType: mtype.String(), data: data}, nil
}

// imageStore owns image uploads for posts and profiles.
type imageStore struct {
	files      store.Files
	moderation *ModerationService
	logger     *zap.Logger
}

// UploadFile stores an image and returns its file id.
func (m *imageStore) UploadFile(ctx context.Context, upload *models.Upload) (string, error) {
	img, err := readImage(upload)
	if err != nil {
		return "", err
	}
	return m.uploadImage(ctx, img)
}

func (m *imageStore) uploadImage(ctx context.Context, img image) (string, error) {
	fileID, err := m.files.Upload(ctx, img.name, img.contentType, img.reader())
	if err != nil {
		m.logger.Error("Failed to upload file", zap.String("name", img.name), zap.Error(err))
		return "", classify(err)
	}
	return fileID, nil
}

// GetFilePreview returns the preview URL used for post and profile images.
func (m *imageStore) GetFilePreview(ctx context.Context, fileID string) (string, error) {
	url, err := m.files.PreviewURL(ctx, fileID, previewSize)
	if err != nil {
		return "", classify(err)
	}
	return url, nil
}

// DeleteFile removes a stored image.
func (m *imageStore) DeleteFile(ctx context.Context, fileID string) error {
	if err := m.files.Delete(ctx, fileID); err != nil {
		return classify(err)
	}
	return nil
}

// deleteOrphan removes a file whose owning document write failed. Failures
// are logged only; the original error is what the caller sees.
func (m *imageStore) deleteOrphan(ctx context.Context, fileID string) {
	if err := m.files.Delete(context.WithoutCancel(ctx), fileID); err != nil {
		m.logger.Warn("Failed to delete orphaned file",
			zap.String("fileID", fileID),
			zap.Error(err))
	}
}

// storeImage moderates, uploads and previews an image. On success the
// caller owns the returned file id and must delete it if its document write
// fails.
func (m *imageStore) storeImage(ctx context.Context, upload *models.Upload) (fileID, url string, err error) {
	img, err := readImage(upload)
	if err != nil {
		return "", "", err
	}
	if err := m.moderation.Check(ctx, img.name, img.data); err != nil {
		return "", "", err
	}

	fileID, err = m.uploadImage(ctx, img)
	if err != nil {
		return "", "", err
	}

	url, err = m.GetFilePreview(ctx, fileID)
	if err != nil {
		m.deleteOrphan(ctx, fileID)
		return "", "", err
	}
	return fileID, url, nil
}
