package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/bookshelf/internal/auth"
	"github.com/redmonkez12/bookshelf/internal/book"
	"github.com/redmonkez12/bookshelf/internal/config"
	"github.com/redmonkez12/bookshelf/internal/database/dbtest"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/ratelimit"
	"github.com/redmonkez12/bookshelf/internal/user"
	"github.com/redmonkez12/bookshelf/internal/validation"
	"github.com/redmonkez12/bookshelf/internal/web"
)

type nopMailer struct{}

func (nopMailer) SendPasswordResetEmail(context.Context, string, string, string, time.Duration) error {
	return nil
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()

	db := dbtest.New(t)
	tokens, err := auth.NewPasetoService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	validator := validation.New(validation.PolicyFromConfig(config.PasswordConfig{
		MinLength: 8, MaxLength: 20, RequireUpper: true, RequireDigit: true, RequireSpecial: true,
	}))

	userRepo := user.NewRepository(db)
	bookService := book.NewService(book.NewRepository(db), validator)
	authService := auth.NewService(userRepo, tokens, auth.NewHasher(1, 8*1024, 1), validator,
		nopMailer{}, nil, logging.Discard(), auth.Settings{
			SessionDuration: time.Hour,
			ResetDuration:   15 * time.Minute,
			UploadMaxBytes:  1 << 20,
		})

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	return NewRouter(cfg,
		auth.NewHandler(authService, ratelimit.NewLimiter(nil), renderer, bookService, false),
		book.NewHandler(bookService, renderer),
		auth.NewMiddleware(tokens, userRepo, false),
		logging.Discard(),
	)
}

func do(router http.Handler, method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, &config.Config{})

	rec := do(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_GlobalHeaders(t *testing.T) {
	router := newTestRouter(t, &config.Config{})

	rec := do(router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
}

func TestRouter_StaticAssetsAreCacheable(t *testing.T) {
	router := newTestRouter(t, &config.Config{})

	rec := do(router, http.MethodGet, "/static/js/flash.js", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Pragma"))
	assert.Contains(t, rec.Body.String(), "replaceState")
}

func TestRouter_ProtectedRoutesRedirectToLogin(t *testing.T) {
	router := newTestRouter(t, &config.Config{})

	for _, path := range []string{"/home", "/profile", "/addBook", "/logout"} {
		t.Run(path, func(t *testing.T) {
			rec := do(router, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))
		})
	}
}

func TestRouter_SessionFlow(t *testing.T) {
	router := newTestRouter(t, &config.Config{})

	rec := do(router, http.MethodPost, "/signup", url.Values{
		"name":     {"Reader"},
		"email":    {"reader@example.com"},
		"password": {"Secret1!x"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?message="+url.QueryEscape("User Registered Successfully"), rec.Header().Get("Location"))

	rec = do(router, http.MethodPost, "/login", url.Values{
		"email":    {"reader@example.com"},
		"password": {"Secret1!x"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/home", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)

	rec = do(router, http.MethodPost, "/addBook", url.Values{
		"title":         {"Dune"},
		"author":        {"Frank Herbert"},
		"price":         {"9.99"},
		"isbn":          {"9780441013593"},
		"publishedDate": {"1965-08-01"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = do(router, http.MethodGet, "/home", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dune")

	rec = do(router, http.MethodGet, "/logout", nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
}

func TestRouter_CORSOnlyWithTrustedOrigins(t *testing.T) {
	preflight := func(router http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://books.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight(newTestRouter(t, &config.Config{}))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	cfg := &config.Config{Server: config.ServerConfig{TrustedOrigins: []string{"https://books.example.com"}}}
	rec = preflight(newTestRouter(t, cfg))
	assert.Equal(t, "https://books.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders_StorageOrigin(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:9000"}, storageOrigin("http://localhost:9000/bucket"))
	assert.Nil(t, storageOrigin(""))
	assert.Nil(t, storageOrigin("not a url"))

	h := SecurityHeaders(storageOrigin("http://localhost:9000")...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "img-src 'self' data: https: http://localhost:9000;")
}
