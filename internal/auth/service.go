package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/bookshelf/internal/apperr"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/sanitize"
	"github.com/redmonkez12/bookshelf/internal/storage"
	"github.com/redmonkez12/bookshelf/internal/user"
	"github.com/redmonkez12/bookshelf/internal/validation"
	"github.com/redmonkez12/bookshelf/internal/web"
)

var (
	ErrEmailTaken               = apperr.Conflict("Email already registered")
	ErrUserNotFound             = apperr.Auth("User not exist")
	ErrWrongPassword            = apperr.Auth("Password Incorrect")
	ErrIncompletePasswordChange = apperr.Validation("Old password, new password and confirm password must all be filled to change password")
	ErrPasswordMismatch         = apperr.Validation("Passwords do not match")
	ErrWrongOldPassword         = apperr.Auth("Old password is incorrect")
	ErrEmailNotFound            = apperr.NotFound("Email not found")
	ErrInvalidResetToken        = apperr.Auth("Reset link is invalid or has expired")
	ErrUploadsDisabled          = apperr.Validation("Profile picture uploads are disabled")
	ErrUnsupportedImage         = apperr.Validation("Only JPEG, PNG or WebP images are allowed")
	ErrImageTooLarge            = apperr.Validation("Profile picture is too large")
	ErrInvalidForm              = apperr.Validation("Invalid form submission")
)

// resetTokenBytes of entropy, hex encoded in the emailed link
const resetTokenBytes = 32

// allowedImageTypes maps sniffed content types to object key extensions
var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type SignUpInput struct {
	Name     string `form:"name" validate:"required,min=3,max=50"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,password"`
}

type LoginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type ProfileInput struct {
	Name            string `form:"name" validate:"required,min=3,max=50"`
	OldPassword     string `form:"oldPassword"`
	NewPassword     string `form:"newPassword"`
	ConfirmPassword string `form:"confirmPassword"`
}

type ForgotPasswordInput struct {
	Email string `form:"email" validate:"required,email"`
}

type ResetInput struct {
	Password        string `form:"password" validate:"required,password"`
	ConfirmPassword string `form:"confirmPassword" validate:"required"`
}

// Upload is a profile picture buffered in memory
type Upload struct {
	Data []byte
}

// Settings are the tunables the service reads from configuration
type Settings struct {
	SessionDuration time.Duration
	ResetDuration   time.Duration
	UploadMaxBytes  int64
}

// Service handles authentication business logic
type Service struct {
	userRepo     *user.Repository
	tokenService TokenService
	hasher       *Hasher
	validator    *validation.Validator
	emailService EmailSender
	objectStore  ObjectStore
	logger       *logging.Logger
	settings     Settings
	now          func() time.Time

	// background tracks reset emails still being sent
	background sync.WaitGroup
}

// NewService wires the auth service. objectStore may be nil, which disables
// profile picture uploads.
func NewService(
	userRepo *user.Repository,
	tokenService TokenService,
	hasher *Hasher,
	validator *validation.Validator,
	emailService EmailSender,
	objectStore ObjectStore,
	logger *logging.Logger,
	settings Settings,
) *Service {
	return &Service{
		userRepo:     userRepo,
		tokenService: tokenService,
		hasher:       hasher,
		validator:    validator,
		emailService: emailService,
		objectStore:  objectStore,
		logger:       logger,
		settings:     settings,
		now:          time.Now,
	}
}

// PasswordHint describes the password policy for forms
func (s *Service) PasswordHint() string {
	return s.validator.Policy().Describe()
}

// SignUp registers a new user
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*user.User, error) {
	in.Name = sanitize.Text(in.Name)
	in.Email = user.NormalizeEmail(sanitize.Text(in.Email))

	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	_, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// The unique index still decides when two sign-ups race past the check above
	newUser, err := s.userRepo.Create(ctx, in.Name, in.Email, passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

// Login authenticates a user and returns a session token
func (s *Service) Login(ctx context.Context, in LoginInput) (string, *user.User, error) {
	in.Email = user.NormalizeEmail(sanitize.Text(in.Email))

	if err := s.validator.Struct(in); err != nil {
		return "", nil, err
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, needsRehash := s.hasher.Verify(existingUser.PasswordHash, in.Password)
	if !ok {
		return "", nil, ErrWrongPassword
	}

	if needsRehash {
		s.rehash(ctx, existingUser.ID, in.Password)
	}

	token, err := s.tokenService.CreateToken(existingUser.ID, s.settings.SessionDuration)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return token, existingUser, nil
}

// rehash upgrades a legacy hash; login still succeeds if it fails
func (s *Service) rehash(ctx context.Context, userID uuid.UUID, password string) {
	logger := logging.GetLoggerFromContext(ctx)

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		logger.Warn("failed to rehash password", "user_id", userID, "error", err)
		return
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		logger.Warn("failed to store rehashed password", "user_id", userID, "error", err)
		return
	}

	logger.Info("upgraded password hash", "user_id", userID)
}

// UpdateProfile changes the display name, and optionally the password and
// profile picture. upload may be nil.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput, upload *Upload) error {
	logger := logging.GetLoggerFromContext(ctx)

	in.Name = sanitize.Text(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return err
	}

	current, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	changes := user.ProfileChanges{Name: &in.Name}

	passwordHash, err := s.passwordChange(current, in)
	if err != nil {
		return err
	}
	changes.PasswordHash = passwordHash

	var newKey string
	if upload != nil && len(upload.Data) > 0 {
		newKey, err = s.storePicture(ctx, userID, upload.Data)
		if err != nil {
			return err
		}
		changes.ProfilePicture = &newKey
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, changes); err != nil {
		if newKey != "" {
			s.deletePicture(ctx, newKey)
		}
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if newKey != "" && current.HasProfilePicture() {
		s.deletePicture(ctx, *current.ProfilePicture)
	}

	logger.Info("profile updated", "user_id", userID, "password_changed", passwordHash != nil, "picture_changed", newKey != "")
	return nil
}

// passwordChange returns the new hash, or nil when no change was requested
func (s *Service) passwordChange(current *user.User, in ProfileInput) (*string, error) {
	filled := 0
	for _, v := range []string{in.OldPassword, in.NewPassword, in.ConfirmPassword} {
		if v != "" {
			filled++
		}
	}

	switch filled {
	case 0:
		return nil, nil
	case 3:
	default:
		return nil, ErrIncompletePasswordChange
	}

	if in.NewPassword != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	if err := s.validator.Password(in.NewPassword); err != nil {
		return nil, err
	}

	if ok, _ := s.hasher.Verify(current.PasswordHash, in.OldPassword); !ok {
		return nil, ErrWrongOldPassword
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &hash, nil
}

func (s *Service) storePicture(ctx context.Context, userID uuid.UUID, data []byte) (string, error) {
	if s.objectStore == nil {
		return "", ErrUploadsDisabled
	}

	if int64(len(data)) > s.settings.UploadMaxBytes {
		return "", ErrImageTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", ErrUnsupportedImage
	}

	key := storage.ProfilePictureKey(userID, ext)
	if err := s.objectStore.Upload(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("failed to upload profile picture: %w", err)
	}

	return key, nil
}

func (s *Service) deletePicture(ctx context.Context, key string) {
	if err := s.objectStore.Delete(ctx, key); err != nil {
		logging.GetLoggerFromContext(ctx).Warn("failed to delete profile picture", "key", key, "error", err)
	}
}

// PictureURL returns a browser-loadable URL for the user's picture
func (s *Service) PictureURL(ctx context.Context, u *user.User) string {
	if !u.HasProfilePicture() || s.objectStore == nil {
		return web.DefaultProfilePicture
	}

	url, err := s.objectStore.URL(ctx, *u.ProfilePicture)
	if err != nil {
		logging.GetLoggerFromContext(ctx).Warn("failed to resolve profile picture", "user_id", u.ID, "error", err)
		return web.DefaultProfilePicture
	}

	return url
}

// RequestPasswordReset stores a fresh reset token for email and mails the
// link. Any earlier pending token stops working.
func (s *Service) RequestPasswordReset(ctx context.Context, in ForgotPasswordInput) error {
	logger := logging.GetLoggerFromContext(ctx)

	in.Email = user.NormalizeEmail(sanitize.Text(in.Email))
	if err := s.validator.Struct(in); err != nil {
		return err
	}

	existingUser, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := s.now().Add(s.settings.ResetDuration)
	if err := s.userRepo.SetResetToken(ctx, existingUser.ID, hashResetToken(token), expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	// The request context is cancelled once the redirect is written
	emailCtx := logging.WithLogger(context.Background(), logger)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.emailService.SendPasswordResetEmail(emailCtx, existingUser.Email, existingUser.Name, token, s.settings.ResetDuration); err != nil {
			logger.Warn("failed to send password reset email", "user_id", existingUser.ID, "error", err)
		}
	}()

	logger.Info("password reset requested", "user_id", existingUser.ID)
	return nil
}

// ValidateResetToken returns the user owning token while it is unexpired
func (s *Service) ValidateResetToken(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, ErrInvalidResetToken
	}

	u, err := s.userRepo.GetByResetToken(ctx, hashResetToken(token), s.now())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("failed to resolve reset token: %w", err)
	}

	return u, nil
}

// ResetPassword consumes token and sets the new password. The token is
// re-checked against the clock in the same statement that clears it.
func (s *Service) ResetPassword(ctx context.Context, token string, in ResetInput) error {
	if token == "" {
		return ErrInvalidResetToken
	}

	if err := s.validator.Struct(in); err != nil {
		return err
	}

	if in.Password != in.ConfirmPassword {
		return ErrPasswordMismatch
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.userRepo.ConsumeResetToken(ctx, hashResetToken(token), s.now(), passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	logging.GetLoggerFromContext(ctx).Info("password reset completed", "user_id", userID)
	return nil
}

// Wait blocks until queued reset emails have been handed to SMTP
func (s *Service) Wait() {
	s.background.Wait()
}

func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashResetToken is what the database stores in place of the emailed token
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
