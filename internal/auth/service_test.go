package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/bookshelf/internal/apperr"
	"github.com/redmonkez12/bookshelf/internal/user"
	"github.com/redmonkez12/bookshelf/internal/web"
)

func TestSignUpThenLogin(t *testing.T) {
	env := newTestEnv(t)

	u := env.signUp(t, "Alice", "a@x.com", "Abc12345!")
	assert.Equal(t, "a@x.com", u.Email)
	assert.NotEqual(t, "Abc12345!", u.PasswordHash)

	token, logged, err := env.svc.Login(testCtx(), LoginInput{Email: "a@x.com", Password: "Abc12345!"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	claims, err := env.tokens.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.WithinDuration(t, env.clock.Now().Add(time.Hour), claims.ExpiresAt, time.Second)
}

func TestSignUp_DuplicateEmailAnyCase(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	for _, email := range []string{"a@x.com", "A@X.COM", "  a@x.com  "} {
		_, err := env.svc.SignUp(testCtx(), SignUpInput{Name: "Alice Two", Email: email, Password: "Abc12345!"})
		assert.ErrorIs(t, err, ErrEmailTaken, "email %q", email)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
}

func TestSignUp_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		in   SignUpInput
		want string
	}{
		{"short name", SignUpInput{Name: "Al", Email: "a@x.com", Password: "Abc12345!"}, "name must be at least 3 characters"},
		{"markup only name", SignUpInput{Name: "<b></b>", Email: "a@x.com", Password: "Abc12345!"}, "name is required"},
		{"bad email", SignUpInput{Name: "Alice", Email: "not-an-email", Password: "Abc12345!"}, "email must be a valid email address"},
		{"weak password", SignUpInput{Name: "Alice", Email: "a@x.com", Password: "abcdefgh"}, "Password must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.SignUp(testCtx(), tt.in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSignUp_SanitizesName(t *testing.T) {
	env := newTestEnv(t)

	u := env.signUp(t, "<script>x</script>Alice", "a@x.com", "Abc12345!")
	assert.Equal(t, "Alice", u.Name)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	_, _, err := env.svc.Login(testCtx(), LoginInput{Email: "b@x.com", Password: "Abc12345!"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "a@x.com", Password: "Abc12345?"})
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "A@X.com", Password: "Abc12345!"})
	assert.NoError(t, err)
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	env := newTestEnv(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("Abc12345!"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := env.users.Create(testCtx(), "Legacy", "old@x.com", string(legacy))
	require.NoError(t, err)

	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "old@x.com", Password: "Abc12345!"})
	require.NoError(t, err)

	stored, err := env.users.GetByID(testCtx(), u.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "old@x.com", Password: "Abc12345!"})
	assert.NoError(t, err)
}

func TestUpdateProfile_NameOnly(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	require.NoError(t, env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice Liddell"}, nil))

	stored, err := env.users.GetByID(testCtx(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", stored.Name)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
}

func TestUpdateProfile_PasswordChange(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	tests := []struct {
		name string
		in   ProfileInput
		want error
	}{
		{"only new", ProfileInput{Name: "Alice", NewPassword: "Xyz12345!"}, ErrIncompletePasswordChange},
		{"missing confirm", ProfileInput{Name: "Alice", OldPassword: "Abc12345!", NewPassword: "Xyz12345!"}, ErrIncompletePasswordChange},
		{"mismatch", ProfileInput{Name: "Alice", OldPassword: "Abc12345!", NewPassword: "Xyz12345!", ConfirmPassword: "Xyz12345?"}, ErrPasswordMismatch},
		{"wrong old", ProfileInput{Name: "Alice", OldPassword: "nope", NewPassword: "Xyz12345!", ConfirmPassword: "Xyz12345!"}, ErrWrongOldPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.UpdateProfile(testCtx(), u.ID, tt.in, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	err := env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice", OldPassword: "Abc12345!", NewPassword: "weak", ConfirmPassword: "weak"}, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice", OldPassword: "Abc12345!", NewPassword: "Xyz12345!", ConfirmPassword: "Xyz12345!"}, nil)
	require.NoError(t, err)

	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "a@x.com", Password: "Abc12345!"})
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "a@x.com", Password: "Xyz12345!"})
	assert.NoError(t, err)
}

func TestUpdateProfile_Picture(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	assert.Equal(t, web.DefaultProfilePicture, env.svc.PictureURL(testCtx(), u))

	require.NoError(t, env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice"}, &Upload{Data: pngBytes}))

	first, err := env.users.GetByID(testCtx(), u.ID)
	require.NoError(t, err)
	require.True(t, first.HasProfilePicture())
	assert.True(t, strings.HasSuffix(*first.ProfilePicture, ".png"))
	assert.Equal(t, "image/png", env.store.objects[*first.ProfilePicture])
	assert.Equal(t, "https://cdn.example.com/"+*first.ProfilePicture, env.svc.PictureURL(testCtx(), first))

	require.NoError(t, env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice"}, &Upload{Data: webpBytes}))

	second, err := env.users.GetByID(testCtx(), u.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(*second.ProfilePicture, ".webp"))
	assert.Equal(t, []string{*first.ProfilePicture}, env.store.deleted)
	assert.NotContains(t, env.store.objects, *first.ProfilePicture)

	require.NoError(t, env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice"}, &Upload{Data: jpegBytes}))
}

func TestUpdateProfile_PictureRejected(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	err := env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice"}, &Upload{Data: []byte("GIF89a......")})
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	big := append([]byte{}, pngBytes...)
	big = append(big, make([]byte, 5<<20)...)
	err = env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice"}, &Upload{Data: big})
	assert.ErrorIs(t, err, ErrImageTooLarge)

	env.store.uploadErr = errors.New("bucket gone")
	err = env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice"}, &Upload{Data: pngBytes})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnexpected, apperr.KindOf(err))

	stored, err := env.users.GetByID(testCtx(), u.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasProfilePicture())
	assert.Empty(t, env.store.objects)
}

func TestUpdateProfile_UploadsDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.svc.objectStore = nil
	u := env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	err := env.svc.UpdateProfile(testCtx(), u.ID, ProfileInput{Name: "Alice"}, &Upload{Data: pngBytes})
	assert.ErrorIs(t, err, ErrUploadsDisabled)
	assert.Equal(t, web.DefaultProfilePicture, env.svc.PictureURL(testCtx(), u))
}

func TestPictureURL_FallsBackOnError(t *testing.T) {
	env := newTestEnv(t)
	key := "broken"

	assert.Equal(t, web.DefaultProfilePicture, env.svc.PictureURL(testCtx(), &user.User{ProfilePicture: &key}))
}

func TestPasswordReset_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	require.NoError(t, env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: "A@x.com"}))
	env.svc.Wait()

	mail := env.mailer.last(t)
	assert.Equal(t, "a@x.com", mail.to)
	assert.Equal(t, "Alice", mail.name)
	assert.Len(t, mail.token, 64)

	stored, err := env.users.GetByID(testCtx(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	assert.NotEqual(t, mail.token, *stored.ResetTokenHash)

	found, err := env.svc.ValidateResetToken(testCtx(), mail.token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	err = env.svc.ResetPassword(testCtx(), mail.token, ResetInput{Password: "Xyz12345!", ConfirmPassword: "Xyz12345!"})
	require.NoError(t, err)

	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "a@x.com", Password: "Xyz12345!"})
	assert.NoError(t, err)

	// single use
	_, err = env.svc.ValidateResetToken(testCtx(), mail.token)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	err = env.svc.ResetPassword(testCtx(), mail.token, ResetInput{Password: "Def12345!", ConfirmPassword: "Def12345!"})
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	cleared, err := env.users.GetByID(testCtx(), u.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.ResetTokenHash)
	assert.Nil(t, cleared.ResetTokenExpiry)
}

func TestPasswordReset_Expires(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	require.NoError(t, env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: "a@x.com"}))
	env.svc.Wait()
	token := env.mailer.last(t).token

	env.clock.Advance(14 * time.Minute)
	_, err := env.svc.ValidateResetToken(testCtx(), token)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)
	_, err = env.svc.ValidateResetToken(testCtx(), token)
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	err = env.svc.ResetPassword(testCtx(), token, ResetInput{Password: "Xyz12345!", ConfirmPassword: "Xyz12345!"})
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	_, _, err = env.svc.Login(testCtx(), LoginInput{Email: "a@x.com", Password: "Abc12345!"})
	assert.NoError(t, err)
}

func TestPasswordReset_NewRequestReplacesOld(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	require.NoError(t, env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: "a@x.com"}))
	env.svc.Wait()
	first := env.mailer.last(t).token

	require.NoError(t, env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: "a@x.com"}))
	env.svc.Wait()
	second := env.mailer.last(t).token

	assert.NotEqual(t, first, second)

	_, err := env.svc.ValidateResetToken(testCtx(), first)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	_, err = env.svc.ValidateResetToken(testCtx(), second)
	assert.NoError(t, err)
}

func TestPasswordReset_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Alice", "a@x.com", "Abc12345!")

	err := env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: "nobody@x.com"})
	assert.ErrorIs(t, err, ErrEmailNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: ""})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = env.svc.ValidateResetToken(testCtx(), "")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	require.NoError(t, env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: "a@x.com"}))
	env.svc.Wait()
	token := env.mailer.last(t).token

	err = env.svc.ResetPassword(testCtx(), token, ResetInput{Password: "Xyz12345!", ConfirmPassword: "Xyz12345?"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	err = env.svc.ResetPassword(testCtx(), token, ResetInput{Password: "weak", ConfirmPassword: "weak"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// failed attempts leave the token usable
	_, err = env.svc.ValidateResetToken(testCtx(), token)
	assert.NoError(t, err)
}

func TestPasswordReset_MailFailureIsNotReported(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Alice", "a@x.com", "Abc12345!")
	env.mailer.err = errors.New("smtp down")

	require.NoError(t, env.svc.RequestPasswordReset(testCtx(), ForgotPasswordInput{Email: "a@x.com"}))
	env.svc.Wait()
	assert.Len(t, env.mailer.sent, 1)
}
