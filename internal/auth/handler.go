package auth

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/bookshelf/internal/httputil"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/ratelimit"
	"github.com/redmonkez12/bookshelf/internal/web"
)

const (
	purposeLogin  = "login"
	purposeSignUp = "signup"
	purposeReset  = "forgot-password"

	tooManyRequests = "Too many requests, please try again later"

	// multipartOverhead leaves room for the non-file form fields
	multipartOverhead = 1 << 20
)

// Handler contains HTTP handlers for authentication and profile pages
type Handler struct {
	service       *Service
	rateLimiter   *ratelimit.Limiter
	renderer      *web.Renderer
	books         BookCounter
	secureCookies bool
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, renderer *web.Renderer, books BookCounter, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		rateLimiter:   rateLimiter,
		renderer:      renderer,
		books:         books,
		secureCookies: secureCookies,
	}
}

type passwordFormData struct {
	PasswordHint string
}

type profileData struct {
	PictureURL   string
	BookCount    int
	PasswordHint string
}

type resetData struct {
	Token        string
	Email        string
	PasswordHint string
}

// LoginPage renders the login form
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "login", web.Page{Title: "Login"})
}

// Login checks credentials and sets the session cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.limited(w, r, purposeLogin, LoginPath) {
		return
	}

	in := LoginInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	token, u, err := h.service.Login(r.Context(), in)
	if err != nil {
		httputil.Fail(w, r, LoginPath, err)
		return
	}

	SetSessionCookie(w, token, h.secureCookies, h.service.settings.SessionDuration)
	logger.Info("user logged in", "user_id", u.ID)
	httputil.Redirect(w, r, "/home", "")
}

// SignUpPage renders the registration form
func (h *Handler) SignUpPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "signup", web.Page{
		Title: "Sign up",
		Data:  passwordFormData{PasswordHint: h.service.PasswordHint()},
	})
}

// SignUp registers a user and sends them to the login page
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.limited(w, r, purposeSignUp, "/signup") {
		return
	}

	in := SignUpInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	newUser, err := h.service.SignUp(r.Context(), in)
	if err != nil {
		httputil.Fail(w, r, "/signup", err)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)
	httputil.Redirect(w, r, LoginPath, "User Registered Successfully")
}

// Logout clears the session cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.secureCookies)
	httputil.Redirect(w, r, LoginPath, "")
}

// Profile renders the profile page of the loaded user
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, LoginPath, "")
		return
	}

	count, err := h.books.Count(r.Context(), u.ID)
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to count books", "user_id", u.ID, "error", err)
		httputil.ServerError(w)
		return
	}

	h.renderer.Render(w, r, "profile", web.Page{
		Title: "Profile",
		User:  u,
		Data: profileData{
			PictureURL:   h.service.PictureURL(r.Context(), u),
			BookCount:    count,
			PasswordHint: h.service.PasswordHint(),
		},
	})
}

// UpdateProfile applies the multipart profile form
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, LoginPath, "")
		return
	}

	maxBytes := h.service.settings.UploadMaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Fail(w, r, "/profile", ErrImageTooLarge)
			return
		}
		logging.GetLoggerFromContext(r.Context()).Warn("malformed profile form", "error", err)
		httputil.Fail(w, r, "/profile", ErrInvalidForm)
		return
	}

	upload, err := readUpload(r, "profilePicture", maxBytes)
	if err != nil {
		httputil.Fail(w, r, "/profile", err)
		return
	}

	in := ProfileInput{
		Name:            r.FormValue("name"),
		OldPassword:     r.FormValue("oldPassword"),
		NewPassword:     r.FormValue("newPassword"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}

	if err := h.service.UpdateProfile(r.Context(), userID, in, upload); err != nil {
		httputil.Fail(w, r, "/profile", err)
		return
	}

	httputil.Redirect(w, r, "/profile", "Profile updated successfully")
}

// readUpload returns nil when the form carries no file under field
func readUpload(r *http.Request, field string, maxBytes int64) (*Upload, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	// One byte past the cap is enough to reject oversize files
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, err
	}

	return &Upload{Data: data}, nil
}

// ForgotPasswordPage renders the reset request form
func (h *Handler) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "forgot_password", web.Page{Title: "Forgot password"})
}

// ForgotPassword emails a reset link. The browser's session is dropped.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())
	ClearSessionCookie(w, h.secureCookies)

	const path = "/forgot-password"

	if h.limited(w, r, purposeReset, path) {
		return
	}

	email := r.PostFormValue("email")

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err)
	} else if onCooldown {
		logger.Warn("email on cooldown")
		httputil.Redirect(w, r, path, "Please wait before requesting another reset link")
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), ForgotPasswordInput{Email: email}); err != nil {
		httputil.Fail(w, r, path, err)
		return
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
		logger.Error("failed to set email cooldown", "error", err)
	}

	httputil.Redirect(w, r, path, "Password reset link sent to your email")
}

// ResetPasswordPage renders the new password form while the token is valid
func (h *Handler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	u, err := h.service.ValidateResetToken(r.Context(), token)
	if err != nil {
		httputil.Fail(w, r, "/forgot-password", err)
		return
	}

	h.renderer.Render(w, r, "reset_password", web.Page{
		Title: "Reset password",
		Data: resetData{
			Token:        token,
			Email:        u.Email,
			PasswordHint: h.service.PasswordHint(),
		},
	})
}

// ResetPassword consumes the token and stores the new password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	in := ResetInput{
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	err := h.service.ResetPassword(r.Context(), token, in)
	switch {
	case err == nil:
		httputil.Redirect(w, r, LoginPath, "Password reset successfully, please login")
	case errors.Is(err, ErrInvalidResetToken):
		httputil.Fail(w, r, "/forgot-password", err)
	default:
		httputil.Fail(w, r, "/reset-password/"+token, err)
	}
}

// limited records the request and reports whether the IP is over its limit
// for purpose. Redis errors are logged and never block the request.
func (h *Handler) limited(w http.ResponseWriter, r *http.Request, purpose, path string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := httputil.ClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err)
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.Redirect(w, r, path, tooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err)
	}

	return false
}
