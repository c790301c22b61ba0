// Package service holds the account pipelines: signup, sign-in, sign-out,
// current user, profile update, account deletion and the admin listing.
//
//	Handler (HTTP) → Service (business rules) → UserRepository (DB)
//	               ↘ Session (identity cookie), Hasher (bcrypt)
//
// ERROR MODEL:
// Every pipeline collects all failing checks and reports them together in an
// Outcome. Only a structurally malformed form short-circuits. Failures the
// user cannot fix (hashing errors, cookie writes) are returned as Go errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

// AuthService runs the signup, sign-in, sign-out and deletion pipelines.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users   repository.UserRepository → read/write user records
//   - hasher  Hasher                    → bcrypt hashing and verification
//   - policy  PasswordPolicy            → rules for new passwords
//   - logger  *slog.Logger              → structured logging
type AuthService struct {
	users  repository.UserRepository
	hasher Hasher
	policy PasswordPolicy
	paths  Paths
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	hasher Hasher,
	policy PasswordPolicy,
	paths Paths,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		policy: policy,
		paths:  paths,
		logger: logger,
	}
}

// Signup registers a new account.
//
// Validation failures and both uniqueness checks are reported together; the
// uniqueness checks run even when validation already failed. Nothing is
// written unless every check passes. Signup never signs the user in: success
// redirects to the sign-in page.
func (s *AuthService) Signup(ctx context.Context, form Form) (Outcome, error) {
	v, ok := form.fields(nil, "username", "email", "role", "password")
	if !ok {
		return structuralFailure(), nil
	}
	username, email, password := v["username"], v["email"], v["password"]

	var errs []string
	if blank(username) {
		errs = append(errs, MsgUsernameRequired)
	}
	if !validEmail(email) {
		errs = append(errs, MsgSignupEmailFormat)
	}
	role, roleOK := model.ParseRole(v["role"])
	if !roleOK {
		errs = append(errs, MsgRoleInvalid)
	}
	errs = append(errs, s.policy.Check(password)...)
	cause := apperror.ErrConflict
	if len(errs) > 0 {
		cause = apperror.ErrValidation
	}

	emailTaken, usernameTaken := checkTaken(ctx, s.users, s.logger, email, username, "")
	if emailTaken {
		errs = append(errs, MsgEmailTaken)
	}
	if usernameTaken {
		errs = append(errs, MsgUsernameTaken)
	}
	if len(errs) > 0 {
		return failed(cause, errs...), nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Outcome{}, fmt.Errorf("service: signup: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	// The store's unique constraints catch a concurrent signup that passed
	// the checks above; it surfaces as the generic failure.
	if err := s.users.Insert(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "signup insert failed", "error", err)
		return failed(apperror.ErrInternal, MsgSignupFailed), nil
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return redirectTo(s.paths.SignIn), nil
}

// SignIn checks credentials and issues the session cookie.
//
// Email shape, password length and the user lookup are all evaluated before
// failing, so "user not found" can appear next to validation messages. The
// cookie is written before the redirect Outcome is returned.
func (s *AuthService) SignIn(ctx context.Context, session Session, form Form) (Outcome, error) {
	v, ok := form.fields([]string{"email", "password"})
	if !ok {
		return structuralFailure(), nil
	}
	email, password := v["email"], v["password"]

	var errs []string
	if !validEmail(email) {
		errs = append(errs, MsgEmailInvalid)
	}
	if !s.policy.LongEnough(password) {
		errs = append(errs, s.policy.TooShortMessage())
	}
	cause := apperror.ErrUnauthorized
	if len(errs) > 0 {
		cause = apperror.ErrValidation
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.ErrorContext(ctx, "sign-in lookup failed", "error", err)
		}
		errs = append(errs, MsgUserNotFound)
	}
	if len(errs) > 0 {
		return failed(cause, errs...), nil
	}

	match, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return Outcome{}, fmt.Errorf("service: sign-in for user %s: %w", user.ID, err)
	}
	if !match {
		s.logger.InfoContext(ctx, "sign-in rejected", "user_id", user.ID)
		return failed(apperror.ErrUnauthorized, MsgPasswordIncorrect), nil
	}

	if err := session.Issue(user.ID); err != nil {
		return Outcome{}, fmt.Errorf("service: issuing session: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed in", "user_id", user.ID)
	return redirectTo(s.paths.Home), nil
}

// SignOut revokes the cookie and redirects to sign-in. If the revoke fails
// the error is returned and no redirect is produced.
func (s *AuthService) SignOut(ctx context.Context, session Session) (Outcome, error) {
	if err := session.Revoke(); err != nil {
		return Outcome{}, fmt.Errorf("service: revoking session: %w", err)
	}
	return redirectTo(s.paths.SignIn), nil
}

// CurrentUser resolves the signed-in user, or nil.
// Without a cookie the repository is not queried at all.
func (s *AuthService) CurrentUser(ctx context.Context, session Session) *model.User {
	id, ok := session.UserID()
	if !ok {
		return nil
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.WarnContext(ctx, "current user lookup failed", "error", err)
		}
		return nil
	}
	return user
}

// DeleteAccount hard-deletes the signed-in user and revokes the cookie.
// A cookie naming a user that is already gone still signs the client out.
func (s *AuthService) DeleteAccount(ctx context.Context, session Session) (Outcome, error) {
	id, ok := session.UserID()
	if !ok {
		return failed(apperror.ErrUnauthorized, MsgSessionInvalid), nil
	}

	if err := s.users.Delete(ctx, id); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		s.logger.ErrorContext(ctx, "account deletion failed", "user_id", id, "error", err)
		return failed(apperror.ErrInternal, MsgDeleteFailed), nil
	}

	if err := session.Revoke(); err != nil {
		s.logger.ErrorContext(ctx, "revoking session after deletion failed", "user_id", id, "error", err)
		return failed(apperror.ErrInternal, MsgSystemError), nil
	}

	s.logger.InfoContext(ctx, "account deleted", "user_id", id)
	return redirectTo(s.paths.SignIn), nil
}

// ProviderProfile is the identity returned by a third-party login.
type ProviderProfile struct {
	Provider string
	Login    string
	Email    string
}

// SignInWithProvider signs in the account registered under the provider's
// email, creating it on first use.
//
// A created account gets a random password hash nobody knows; the owner can
// only set one through a password reset outside this service.
func (s *AuthService) SignInWithProvider(ctx context.Context, session Session, profile ProviderProfile) (Outcome, error) {
	if blank(profile.Email) {
		return failed(apperror.ErrUnauthorized, MsgProviderEmailMissing), nil
	}

	user, err := s.users.FindByEmail(ctx, profile.Email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.registerFromProvider(ctx, profile)
		if err != nil {
			s.logger.ErrorContext(ctx, "provider signup failed", "provider", profile.Provider, "error", err)
			return failed(apperror.ErrInternal, MsgSignupFailed), nil
		}
	case err != nil:
		s.logger.ErrorContext(ctx, "provider sign-in lookup failed", "provider", profile.Provider, "error", err)
		return failed(apperror.ErrInternal, MsgSystemError), nil
	}

	if err := session.Issue(user.ID); err != nil {
		return Outcome{}, fmt.Errorf("service: issuing session: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed in", "user_id", user.ID, "provider", profile.Provider)
	return redirectTo(s.paths.Home), nil
}

func (s *AuthService) registerFromProvider(ctx context.Context, profile ProviderProfile) (*model.User, error) {
	username := profile.Login
	if blank(username) {
		username = profile.Provider + "-user"
	}
	_, taken := checkTaken(ctx, s.users, s.logger, "", username, "")
	if taken {
		username = username + "-" + xid.New().String()
	}

	hash, err := s.hasher.Hash(xid.New().String() + xid.New().String())
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        profile.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "provider", profile.Provider)
	return user, nil
}

// checkTaken runs the email and username uniqueness checks concurrently.
// Empty values are not checked. A failed check is logged and counts as
// "not taken"; the store's unique constraints still guard the write.
func checkTaken(ctx context.Context, users repository.UserRepository, logger *slog.Logger, email, username, excludeID string) (emailTaken, usernameTaken bool) {
	var g errgroup.Group

	if email != "" {
		g.Go(func() error {
			taken, err := users.ExistsByEmailExcept(ctx, email, excludeID)
			if err != nil {
				logger.WarnContext(ctx, "email uniqueness check failed", "error", err)
				return nil
			}
			emailTaken = taken
			return nil
		})
	}
	if username != "" {
		g.Go(func() error {
			taken, err := users.ExistsByUsernameExcept(ctx, username, excludeID)
			if err != nil {
				logger.WarnContext(ctx, "username uniqueness check failed", "error", err)
				return nil
			}
			usernameTaken = taken
			return nil
		})
	}

	_ = g.Wait()
	return emailTaken, usernameTaken
}
