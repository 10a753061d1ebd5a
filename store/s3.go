package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client used by S3Files.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Presigner signs read URLs. *s3.PresignClient satisfies it.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures S3Files.
type S3Options struct {
	Bucket    string
	KeyPrefix string
	// PreviewBaseURL points at an image proxy that serves resized renditions
	// of stored keys. When empty, previews are presigned GET URLs.
	PreviewBaseURL string
	PresignExpires time.Duration
}

// S3Files keeps uploaded images in a bucket.
type S3Files struct {
	client    S3API
	presigner S3Presigner
	opts      S3Options
	logger    *zap.Logger
}

// NewS3Files creates an S3 backed blob store.
func NewS3Files(client S3API, presigner S3Presigner, opts S3Options, logger *zap.Logger) *S3Files {
	if opts.PresignExpires <= 0 {
		opts.PresignExpires = 7 * 24 * time.Hour
	}
	return &S3Files{
		client:    client,
		presigner: presigner,
		opts:      opts,
		logger:    logger.Named("s3"),
	}
}

func (f *S3Files) key(fileID string) string {
	return f.opts.KeyPrefix + fileID
}

// Upload writes the body under a new file id.
func (f *S3Files) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	fileID := uuid.New().String()
	_, err = f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(f.opts.Bucket),
		Key:           aws.String(f.key(fileID)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{"filename": name},
	})
	if err != nil {
		f.logger.Error("Failed to upload file",
			zap.String("name", name),
			zap.Error(err))
		return "", fmt.Errorf("%w: upload %s: %w", ErrUnavailable, name, err)
	}

	f.logger.Debug("Uploaded file",
		zap.String("fileID", fileID),
		zap.Int("size", len(data)))
	return fileID, nil
}

// PreviewURL returns a URL for a rendition of the file.
func (f *S3Files) PreviewURL(ctx context.Context, fileID string, preview Preview) (string, error) {
	if _, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.opts.Bucket),
		Key:    aws.String(f.key(fileID)),
	}); err != nil {
		return "", fmt.Errorf("%w: file %s: %w", ErrNotFound, fileID, err)
	}

	if f.opts.PreviewBaseURL != "" {
		return previewURL(f.opts.PreviewBaseURL, f.key(fileID), preview)
	}

	req, err := f.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.opts.Bucket),
		Key:    aws.String(f.key(fileID)),
	}, s3.WithPresignExpires(f.opts.PresignExpires))
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %w", ErrUnavailable, fileID, err)
	}
	return req.URL, nil
}

// Delete removes the object.
func (f *S3Files) Delete(ctx context.Context, fileID string) error {
	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.opts.Bucket),
		Key:    aws.String(f.key(fileID)),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrUnavailable, fileID, err)
	}
	return nil
}
