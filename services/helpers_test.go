package services_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"safespace/models"
	"safespace/services"
	"safespace/store"
	"safespace/utils"
)

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func pngUpload() *models.Upload {
	return &models.Upload{Name: "photo.png", ContentType: "image/png", Body: bytes.NewReader(pngBytes)}
}

// tickingClock advances one second per reading so store timestamps are
// strictly increasing.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func noRetry() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxRetries:      0,
	}
}

// faultyDocs wraps a Documents store and fails selected calls per
// collection.
type faultyDocs struct {
	store.Documents

	mu         sync.Mutex
	failCreate map[string]error
	failUpdate map[string]error
	failList   map[string]error
	failGet    map[string]error
	listCalls  map[string]int
}

func newFaultyDocs(inner store.Documents) *faultyDocs {
	return &faultyDocs{
		Documents:  inner,
		failCreate: map[string]error{},
		failUpdate: map[string]error{},
		failList:   map[string]error{},
		failGet:    map[string]error{},
		listCalls:  map[string]int{},
	}
}

func (f *faultyDocs) set(m map[string]error, collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(m, collection)
		return
	}
	m[collection] = err
}

func (f *faultyDocs) fault(m map[string]error, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[collection]
}

func (f *faultyDocs) Create(ctx context.Context, collection, id string, fields map[string]any) (store.Document, error) {
	if err := f.fault(f.failCreate, collection); err != nil {
		return nil, err
	}
	return f.Documents.Create(ctx, collection, id, fields)
}

func (f *faultyDocs) Update(ctx context.Context, collection, id string, fields map[string]any) (store.Document, error) {
	if err := f.fault(f.failUpdate, collection); err != nil {
		return nil, err
	}
	return f.Documents.Update(ctx, collection, id, fields)
}

func (f *faultyDocs) List(ctx context.Context, collection string, queries ...store.Query) (store.DocumentList, error) {
	f.mu.Lock()
	f.listCalls[collection]++
	f.mu.Unlock()
	if err := f.fault(f.failList, collection); err != nil {
		return store.DocumentList{}, err
	}
	return f.Documents.List(ctx, collection, queries...)
}

func (f *faultyDocs) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := f.fault(f.failGet, collection); err != nil {
		return nil, err
	}
	return f.Documents.Get(ctx, collection, id)
}

// faultyFiles fails previews on demand.
type faultyFiles struct {
	*store.MemoryFiles
	failPreview error
}

func (f *faultyFiles) PreviewURL(ctx context.Context, fileID string, preview store.Preview) (string, error) {
	if f.failPreview != nil {
		return "", f.failPreview
	}
	return f.MemoryFiles.PreviewURL(ctx, fileID, preview)
}

type fixture struct {
	docs     *faultyDocs
	files    *faultyFiles
	auth     *services.AuthService
	posts    *services.PostService
	users    *services.UserService
	follows  *services.FollowService
	chat     *services.ChatService
	accounts *store.DocumentAccounts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithModeration(t, nil)
}

func newFixtureWithModeration(t *testing.T, moderation *services.ModerationService) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	docs := newFaultyDocs(store.NewMemory().WithClock(tickingClock()))
	files := &faultyFiles{MemoryFiles: store.NewMemoryFiles("http://files.test")}
	accounts := store.NewDocumentAccounts(docs, bcrypt.MinCost)
	avatars := store.InitialsAvatars{BaseURL: "http://avatars.test/initials"}

	return &fixture{
		docs:     docs,
		files:    files,
		accounts: accounts,
		auth:     services.NewAuthService(accounts, avatars, docs, noRetry(), logger),
		posts:    services.NewPostService(docs, files, moderation, noRetry(), logger),
		users:    services.NewUserService(docs, files, moderation, noRetry(), logger),
		follows:  services.NewFollowService(docs, noRetry(), 4, logger),
		chat:     services.NewChatService(docs, noRetry(), 4, logger),
	}
}

// createUser writes a user document directly.
func (f *fixture) createUser(t *testing.T, name string) models.User {
	t.Helper()
	user, err := f.auth.SaveUserToDB(t.Context(), models.User{
		AccountID: "acct-" + name,
		Name:      name,
		Username:  name,
		Email:     name + "@example.com",
		ImageURL:  "http://avatars.test/" + name,
	})
	require.NoError(t, err)
	return user
}
