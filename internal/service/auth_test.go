package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

func signupForm(username, email, role, password string) Form {
	return Form{"username": username, "email": email, "role": role, "password": password}
}

// =========================================================================
// Signup TESTS
// =========================================================================

func TestSignup_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	out, err := svc.Signup(context.Background(), signupForm("kobito", "test@example.com", "user", "secret123"))
	require.NoError(t, err)

	assert.Equal(t, Redirect, out.Kind)
	assert.Equal(t, "/signin", out.Target)
	assert.Empty(t, out.Errors)
	assert.Equal(t, 1, repo.insertCalls)

	// The user is discoverable by email and the stored hash verifies.
	user, err := repo.FindByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, "kobito", user.Username)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	ok, err := testHasher().Verify(user.PasswordHash, "secret123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignup_CollectsAllValidationErrors(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	out, err := svc.Signup(context.Background(), signupForm("", "not-an-email", "superuser", "123"))
	require.NoError(t, err)

	assert.Equal(t, Failure, out.Kind)
	assert.Equal(t, []string{
		MsgUsernameRequired,
		MsgSignupEmailFormat,
		MsgRoleInvalid,
		"パスワードは6文字以上で入力してください",
	}, out.Errors)
	assert.ErrorIs(t, out.Cause, apperror.ErrValidation)
	assert.Zero(t, repo.insertCalls)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(model.User{Username: "someone", Email: "test@example.com"})
	svc := newTestAuthService(repo)

	out, err := svc.Signup(context.Background(), signupForm("kobito", "test@example.com", "user", "secret123"))
	require.NoError(t, err)

	assert.Equal(t, Failure, out.Kind)
	assert.Equal(t, []string{MsgEmailTaken}, out.Errors)
	assert.Contains(t, out.Errors[0], "既に登録されています")
	assert.ErrorIs(t, out.Cause, apperror.ErrConflict)
	assert.Zero(t, repo.insertCalls, "insert must not be called on conflict")
}

func TestSignup_ConflictsReportedWithValidationErrors(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(model.User{Username: "kobito", Email: "taken@example.com"})
	svc := newTestAuthService(repo)

	// Password too short, but both uniqueness checks still run.
	out, err := svc.Signup(context.Background(), signupForm("kobito", "taken@example.com", "admin", "abc"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"パスワードは6文字以上で入力してください",
		MsgEmailTaken,
		MsgUsernameTaken,
	}, out.Errors)
	assert.ErrorIs(t, out.Cause, apperror.ErrValidation)
}

func TestSignup_InsertFailureIsGeneric(t *testing.T) {
	repo := newFakeUserRepo()
	repo.insertErr = &repository.StoreError{Op: "insert", Message: "duplicate key", Details: "Key (email) exists"}
	svc := newTestAuthService(repo)

	out, err := svc.Signup(context.Background(), signupForm("kobito", "test@example.com", "user", "secret123"))
	require.NoError(t, err)

	assert.Equal(t, Failure, out.Kind)
	assert.Equal(t, []string{MsgSignupFailed}, out.Errors)
	assert.ErrorIs(t, out.Cause, apperror.ErrInternal)
}

func TestSignup_UniquenessCheckErrorIsIgnored(t *testing.T) {
	repo := newFakeUserRepo()
	repo.existsErr = errDatabaseDown
	svc := newTestAuthService(repo)

	out, err := svc.Signup(context.Background(), signupForm("kobito", "test@example.com", "user", "secret123"))
	require.NoError(t, err)
	assert.Equal(t, Redirect, out.Kind)
}

func TestSignup_StrictPolicy(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testHasher(), StrictPolicy, DefaultPaths, testLogger())

	out, err := svc.Signup(context.Background(), signupForm("kobito", "test@example.com", "user", "abcdefg"))
	require.NoError(t, err)
	assert.Equal(t, []string{"パスワードは8文字以上で入力してください", MsgPasswordMix}, out.Errors)

	out, err = svc.Signup(context.Background(), signupForm("kobito", "test@example.com", "user", "secret123"))
	require.NoError(t, err)
	assert.Equal(t, Redirect, out.Kind)
}

func TestSignup_FromValues(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	// A field submitted twice is structurally invalid.
	values := url.Values{
		"username": {"kobito", "other"},
		"email":    {"test@example.com"},
		"role":     {"user"},
		"password": {"secret123"},
	}
	out, err := svc.Signup(context.Background(), FormFromValues(values))
	require.NoError(t, err)
	assert.Equal(t, []string{MsgFormInvalid}, out.Errors)
	assert.Zero(t, repo.insertCalls)
}

// =========================================================================
// SignIn TESTS
// =========================================================================

func TestSignIn_Success(t *testing.T) {
	repo := newFakeUserRepo()
	user := addUserWithPassword(t, repo, "kobito", "test@example.com", "secret123", model.RoleUser)
	svc := newTestAuthService(repo)
	session := &fakeSession{}

	out, err := svc.SignIn(context.Background(), session, Form{"email": "test@example.com", "password": "secret123"})
	require.NoError(t, err)

	assert.Equal(t, Redirect, out.Kind)
	assert.Equal(t, "/mypage", out.Target)
	assert.Equal(t, []string{user.ID}, session.issued, "cookie value must be the user's id")
}

func TestSignIn_WrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	addUserWithPassword(t, repo, "kobito", "test@example.com", "secret123", model.RoleUser)
	svc := newTestAuthService(repo)
	session := &fakeSession{}

	out, err := svc.SignIn(context.Background(), session, Form{"email": "test@example.com", "password": "wrong-password"})
	require.NoError(t, err)

	assert.Equal(t, Failure, out.Kind)
	assert.Equal(t, []string{MsgPasswordIncorrect}, out.Errors)
	assert.ErrorIs(t, out.Cause, apperror.ErrUnauthorized)
	assert.Empty(t, session.issued, "no cookie on a password mismatch")
}

func TestSignIn_NotFoundReportedWithValidationErrors(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	session := &fakeSession{}

	out, err := svc.SignIn(context.Background(), session, Form{"email": "bad", "password": "123"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		MsgEmailInvalid,
		"パスワードは6文字以上で入力してください",
		MsgUserNotFound,
	}, out.Errors)
	assert.ErrorIs(t, out.Cause, apperror.ErrValidation)
	assert.Empty(t, session.issued)
}

func TestSignIn_UnknownUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	out, err := svc.SignIn(context.Background(), &fakeSession{}, Form{"email": "ghost@example.com", "password": "secret123"})
	require.NoError(t, err)
	assert.Equal(t, []string{MsgUserNotFound}, out.Errors)
	assert.ErrorIs(t, out.Cause, apperror.ErrUnauthorized)
}

func TestSignIn_LookupErrorReadsAsNotFound(t *testing.T) {
	repo := newFakeUserRepo()
	repo.findByEmailErr = errDatabaseDown
	svc := newTestAuthService(repo)

	out, err := svc.SignIn(context.Background(), &fakeSession{}, Form{"email": "test@example.com", "password": "secret123"})
	require.NoError(t, err)
	assert.Equal(t, []string{MsgUserNotFound}, out.Errors)
}

func TestSignIn_StructuralFailureShortCircuits(t *testing.T) {
	tests := []struct {
		name string
		form Form
	}{
		{"missing password", Form{"email": "test@example.com"}},
		{"non-string email", Form{"email": 42.0, "password": "secret123"}},
		{"repeated field", Form{"email": []string{"a@example.com", "b@example.com"}, "password": "secret123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			repo.findByEmailErr = errors.New("must not be called")
			svc := newTestAuthService(repo)

			out, err := svc.SignIn(context.Background(), &fakeSession{}, tt.form)
			require.NoError(t, err)
			assert.Equal(t, []string{MsgFormInvalid}, out.Errors)
		})
	}
}

func TestSignIn_MinimumLengthBoundary(t *testing.T) {
	repo := newFakeUserRepo()
	addUserWithPassword(t, repo, "kobito", "test@example.com", "abcdef", model.RoleUser)
	svc := newTestAuthService(repo)

	out, err := svc.SignIn(context.Background(), &fakeSession{}, Form{"email": "test@example.com", "password": "abcdef"})
	require.NoError(t, err)
	assert.Equal(t, Redirect, out.Kind, "exactly the minimum length passes")

	out, err = svc.SignIn(context.Background(), &fakeSession{}, Form{"email": "test@example.com", "password": "abcde"})
	require.NoError(t, err)
	assert.Contains(t, out.Errors, "パスワードは6文字以上で入力してください")
}

func TestSignIn_IssueFailurePropagates(t *testing.T) {
	repo := newFakeUserRepo()
	addUserWithPassword(t, repo, "kobito", "test@example.com", "secret123", model.RoleUser)
	svc := newTestAuthService(repo)
	session := &fakeSession{issueErr: errors.New("response already written")}

	out, err := svc.SignIn(context.Background(), session, Form{"email": "test@example.com", "password": "secret123"})
	require.Error(t, err)
	assert.NotEqual(t, Redirect, out.Kind, "no redirect without a cookie")
}

func TestSignIn_MalformedStoredHash(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(model.User{Username: "kobito", Email: "test@example.com", PasswordHash: "not-bcrypt"})
	svc := newTestAuthService(repo)

	_, err := svc.SignIn(context.Background(), &fakeSession{}, Form{"email": "test@example.com", "password": "secret123"})
	assert.Error(t, err)
}

// =========================================================================
// SignOut TESTS
// =========================================================================

func TestSignOut(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	session := &fakeSession{userID: "user-1"}

	out, err := svc.SignOut(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, 1, session.revoked)
	assert.Equal(t, Redirect, out.Kind)
	assert.Equal(t, "/signin", out.Target)
}

func TestSignOut_RevokeFailurePropagates(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	revokeErr := errors.New("cookie store unavailable")
	session := &fakeSession{userID: "user-1", revokeErr: revokeErr}

	out, err := svc.SignOut(context.Background(), session)
	require.ErrorIs(t, err, revokeErr)
	assert.NotEqual(t, Redirect, out.Kind, "redirect must never happen after a failed revoke")
	assert.Empty(t, out.Target)
}

// =========================================================================
// CurrentUser TESTS
// =========================================================================

func TestCurrentUser(t *testing.T) {
	repo := newFakeUserRepo()
	user := repo.add(model.User{Username: "kobito", Email: "test@example.com"})
	svc := newTestAuthService(repo)
	session := &fakeSession{userID: user.ID}

	first := svc.CurrentUser(context.Background(), session)
	second := svc.CurrentUser(context.Background(), session)
	require.NotNil(t, first)
	assert.Equal(t, first, second, "repeated reads return equal records")
	assert.Equal(t, "kobito", first.Username)
}

func TestCurrentUser_NoCookieSkipsRepository(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	assert.Nil(t, svc.CurrentUser(context.Background(), &fakeSession{}))
	assert.Zero(t, repo.findByIDCalls)
}

func TestCurrentUser_LookupFailureIsNil(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	assert.Nil(t, svc.CurrentUser(context.Background(), &fakeSession{userID: "deleted-user"}))

	repo.findByIDErr = errDatabaseDown
	assert.Nil(t, svc.CurrentUser(context.Background(), &fakeSession{userID: "deleted-user"}))
}

// =========================================================================
// DeleteAccount TESTS
// =========================================================================

func TestDeleteAccount(t *testing.T) {
	repo := newFakeUserRepo()
	user := repo.add(model.User{Username: "doomed", Email: "doomed@example.com"})
	svc := newTestAuthService(repo)
	session := &fakeSession{userID: user.ID}

	out, err := svc.DeleteAccount(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, Redirect, out.Kind)
	assert.Equal(t, "/signin", out.Target)
	assert.Equal(t, 1, session.revoked)

	_, found := repo.get(user.ID)
	assert.False(t, found)
}

func TestDeleteAccount_Failures(t *testing.T) {
	t.Run("no cookie", func(t *testing.T) {
		svc := newTestAuthService(newFakeUserRepo())
		out, err := svc.DeleteAccount(context.Background(), &fakeSession{})
		require.NoError(t, err)
		assert.Equal(t, []string{MsgSessionInvalid}, out.Errors)
	})

	t.Run("store failure keeps the cookie", func(t *testing.T) {
		repo := newFakeUserRepo()
		repo.deleteErr = errDatabaseDown
		svc := newTestAuthService(repo)
		session := &fakeSession{userID: "user-1"}

		out, err := svc.DeleteAccount(context.Background(), session)
		require.NoError(t, err)
		assert.Equal(t, []string{MsgDeleteFailed}, out.Errors)
		assert.Zero(t, session.revoked)
	})

	t.Run("revoke failure", func(t *testing.T) {
		repo := newFakeUserRepo()
		user := repo.add(model.User{Username: "a", Email: "a@example.com"})
		svc := newTestAuthService(repo)

		out, err := svc.DeleteAccount(context.Background(), &fakeSession{userID: user.ID, revokeErr: errors.New("boom")})
		require.NoError(t, err)
		assert.Equal(t, []string{MsgSystemError}, out.Errors)
	})
}

// =========================================================================
// SignInWithProvider TESTS
// =========================================================================

func TestSignInWithProvider_CreatesAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	session := &fakeSession{}

	out, err := svc.SignInWithProvider(context.Background(), session, ProviderProfile{
		Provider: "github", Login: "octocat", Email: "octocat@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, Redirect, out.Kind)
	assert.Equal(t, "/mypage", out.Target)

	user, err := repo.FindByEmail(context.Background(), "octocat@example.com")
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Username)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, []string{user.ID}, session.issued)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"), "placeholder password must be hashed")
}

func TestSignInWithProvider_ExistingAccount(t *testing.T) {
	repo := newFakeUserRepo()
	existing := repo.add(model.User{Username: "kobito", Email: "kobito@example.com"})
	svc := newTestAuthService(repo)
	session := &fakeSession{}

	_, err := svc.SignInWithProvider(context.Background(), session, ProviderProfile{
		Provider: "github", Login: "someone-else", Email: "kobito@example.com",
	})
	require.NoError(t, err)
	assert.Zero(t, repo.insertCalls)
	assert.Equal(t, []string{existing.ID}, session.issued)
}

func TestSignInWithProvider_UsernameCollision(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(model.User{Username: "octocat", Email: "first@example.com"})
	svc := newTestAuthService(repo)

	_, err := svc.SignInWithProvider(context.Background(), &fakeSession{}, ProviderProfile{
		Provider: "github", Login: "octocat", Email: "second@example.com",
	})
	require.NoError(t, err)

	user, err := repo.FindByEmail(context.Background(), "second@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "octocat", user.Username)
	assert.True(t, strings.HasPrefix(user.Username, "octocat-"))
}

func TestSignInWithProvider_MissingEmail(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	session := &fakeSession{}

	out, err := svc.SignInWithProvider(context.Background(), session, ProviderProfile{Provider: "github", Login: "octocat"})
	require.NoError(t, err)
	assert.Equal(t, Failure, out.Kind)
	assert.Empty(t, session.issued)
}
