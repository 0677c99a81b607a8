package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/bookshelf/internal/database/dbtest"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/user"
	"github.com/redmonkez12/bookshelf/internal/validation"
)

type sentReset struct {
	to    string
	name  string
	token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, name, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentReset{to: to, name: name, token: token})
	return m.err
}

func (m *fakeMailer) last(t *testing.T) sentReset {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no reset email sent")
	return m.sent[len(m.sent)-1]
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]string // key -> content type
	deleted   []string
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]string)}
}

func (s *fakeStore) Upload(_ context.Context, key string, _ []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.objects[key] = contentType
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) URL(_ context.Context, key string) (string, error) {
	if key == "broken" {
		return "", errors.New("presign failed")
	}
	return "https://cdn.example.com/" + key, nil
}

type fakeBooks struct {
	count int
	err   error
}

func (b fakeBooks) Count(context.Context, uuid.UUID) (int, error) {
	return b.count, b.err
}

type testEnv struct {
	svc    *Service
	users  *user.Repository
	mailer *fakeMailer
	store  *fakeStore
	tokens *PasetoService
	clock  *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newClock()
	users := user.NewRepository(dbtest.New(t))
	tokens := newTestPaseto(t, clock)
	mailer := &fakeMailer{}
	store := newFakeStore()

	svc := NewService(
		users,
		tokens,
		newTestHasher(),
		validation.New(validation.DefaultPasswordPolicy),
		mailer,
		store,
		logging.Discard(),
		Settings{
			SessionDuration: time.Hour,
			ResetDuration:   15 * time.Minute,
			UploadMaxBytes:  5 << 20,
		},
	)
	svc.now = clock.Now
	t.Cleanup(svc.Wait)

	return &testEnv{svc: svc, users: users, mailer: mailer, store: store, tokens: tokens, clock: clock}
}

func testCtx() context.Context {
	return logging.WithLogger(context.Background(), logging.Discard())
}

func (e *testEnv) signUp(t *testing.T, name, email, password string) *user.User {
	t.Helper()
	u, err := e.svc.SignUp(testCtx(), SignUpInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return u
}

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), make([]byte, 64)...)
	webpBytes = append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 64)...)
)
