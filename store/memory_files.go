package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// MemoryFiles keeps uploaded blobs in memory.
type MemoryFiles struct {
	mu      sync.RWMutex
	files   map[string]memoryFile
	BaseURL string
}

type memoryFile struct {
	name        string
	contentType string
	data        []byte
}

// NewMemoryFiles creates an empty blob store whose preview URLs are rooted at
// baseURL.
func NewMemoryFiles(baseURL string) *MemoryFiles {
	return &MemoryFiles{
		files:   make(map[string]memoryFile),
		BaseURL: baseURL,
	}
}

// Upload stores the body and returns its file id.
func (f *MemoryFiles) Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	id := uuid.New().String()
	f.mu.Lock()
	f.files[id] = memoryFile{name: name, contentType: contentType, data: buf.Bytes()}
	f.mu.Unlock()
	return id, nil
}

// PreviewURL returns a URL describing the requested rendition.
func (f *MemoryFiles) PreviewURL(ctx context.Context, fileID string, preview Preview) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !f.Exists(fileID) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	return previewURL(f.BaseURL, fileID, preview)
}

// Delete removes the blob.
func (f *MemoryFiles) Delete(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[fileID]; !ok {
		return fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	delete(f.files, fileID)
	return nil
}

// Exists reports whether a blob with fileID is stored.
func (f *MemoryFiles) Exists(fileID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.files[fileID]
	return ok
}

// Len returns the number of stored blobs.
func (f *MemoryFiles) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.files)
}

// previewURL appends the rendition parameters to base/fileID.
func previewURL(base, fileID string, preview Preview) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse preview base url: %w", err)
	}
	u = u.JoinPath(fileID, "preview")

	q := u.Query()
	if preview.Width > 0 {
		q.Set("width", strconv.Itoa(preview.Width))
	}
	if preview.Height > 0 {
		q.Set("height", strconv.Itoa(preview.Height))
	}
	if preview.Gravity != "" {
		q.Set("gravity", preview.Gravity)
	}
	if preview.Quality > 0 {
		q.Set("quality", strconv.Itoa(preview.Quality))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
