// Package store defines the hosted-backend capabilities the application is
// built on (documents, files, accounts, avatars) and the adapters that
// provide them.
package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bytedance/sonic"

	"safespace/models"
)

var (
	// ErrNotFound is returned when the requested document or file does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when creating a document over an existing id.
	ErrConflict = errors.New("document already exists")
	// ErrUnavailable wraps transport and service failures.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalidQuery is returned for malformed queries such as an unknown cursor.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnauthorized is returned for bad credentials or unknown sessions.
	ErrUnauthorized = errors.New("unauthorized")
)

// System fields present on every document.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// UniqueID asks the store to mint a new document id.
const UniqueID = "unique()"

// DefaultLimit is applied to list calls that do not set a Limit.
const DefaultLimit = 25

// TimeLayout is fixed width so that lexical order equals time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Document is a schemaless record. System fields use the Field* keys.
type Document map[string]any

// ID returns the document id.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// DocumentList is the result of a list call. Total counts every document
// matching the filters regardless of limit and cursor.
type DocumentList struct {
	Documents []Document
	Total     int
}

// Documents is the document database capability.
type Documents interface {
	Create(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, queries ...Query) (DocumentList, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Preview describes a resized rendition of a stored image.
type Preview struct {
	Width   int
	Height  int
	Gravity string
	Quality int
}

// Files is the blob storage capability.
type Files interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
	PreviewURL(ctx context.Context, fileID string, preview Preview) (string, error)
	Delete(ctx context.Context, fileID string) error
}

// Accounts is the authentication capability.
type Accounts interface {
	Create(ctx context.Context, id, email, password, name string) (models.Account, error)
	CreateSession(ctx context.Context, email, password string) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Get(ctx context.Context, sessionID string) (models.Account, error)
}

// Avatars builds generated avatar URLs.
type Avatars interface {
	Initials(name string) string
}

// Decode converts a document into a typed model.
func Decode(doc Document, out any) error {
	data, err := sonic.Marshal(doc)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, out)
}

// DecodeList converts every document in list into T.
func DecodeList[T any](list DocumentList) (models.DocumentList[T], error) {
	result := models.DocumentList[T]{
		Documents: make([]T, 0, len(list.Documents)),
		Total:     list.Total,
	}
	for _, doc := range list.Documents {
		var item T
		if err := Decode(doc, &item); err != nil {
			return models.DocumentList[T]{}, err
		}
		result.Documents = append(result.Documents, item)
	}
	return result, nil
}
