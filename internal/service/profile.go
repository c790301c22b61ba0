package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

// ProfileService applies self-service profile changes.
type ProfileService struct {
	users  repository.UserRepository
	hasher Hasher
	policy PasswordPolicy
	logger *slog.Logger
}

func NewProfileService(users repository.UserRepository, hasher Hasher, policy PasswordPolicy, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, hasher: hasher, policy: policy, logger: logger}
}

// UpdateProfile validates and applies a change of username, email and
// optionally password for the signed-in user.
//
// Form fields: username, email (required), current_password, new_password
// (optional). The checks run in this order and every failure is collected:
//
//  1. every present field is a string, otherwise stop with one message
//  2. username non-blank, email well-formed
//  3. the cookie names a user id
//  4. that user exists
//  5. a new password needs the correct current password
//  6. email unused by any other user
//  7. username unused by any other user
//  8. a new password that breaks the policy is reported
//
// Nothing is written if anything failed. On success the cookie is issued
// again for the same user id.
func (s *ProfileService) UpdateProfile(ctx context.Context, session Session, form Form) (Outcome, error) {
	v, ok := form.fields([]string{"username", "email"}, "current_password", "new_password")
	if !ok {
		return structuralFailure(), nil
	}
	username, email := v["username"], v["email"]
	currentPassword, newPassword := v["current_password"], v["new_password"]

	var errs []string
	cause := apperror.ErrValidation

	if blank(username) {
		errs = append(errs, MsgUsernameRequired)
	}
	if !validEmail(email) {
		errs = append(errs, MsgEmailInvalid)
	}

	userID, signedIn := session.UserID()
	if !signedIn {
		errs = append(errs, MsgLoginInfoUnavailable)
		cause = apperror.ErrUnauthorized
	}

	var user *model.User
	if signedIn {
		u, err := s.users.FindByID(ctx, userID)
		if err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				s.logger.ErrorContext(ctx, "profile lookup failed", "user_id", userID, "error", err)
			}
			errs = append(errs, MsgUserNotFound)
			cause = apperror.ErrUnauthorized
		} else {
			user = u
		}
	}

	changingPassword := !blank(newPassword)
	policyErrs := s.policy.Check(newPassword)
	passwordAcceptable := changingPassword && len(policyErrs) == 0

	if changingPassword {
		switch {
		case blank(currentPassword):
			errs = append(errs, MsgCurrentPasswordRequired)
		case user != nil:
			match, err := s.hasher.Verify(user.PasswordHash, currentPassword)
			if err != nil {
				return Outcome{}, fmt.Errorf("service: verifying current password for user %s: %w", user.ID, err)
			}
			if !match {
				errs = append(errs, MsgCurrentPasswordIncorrect)
			}
		}
	}

	if signedIn {
		emailTaken, usernameTaken := checkTaken(ctx, s.users, s.logger, email, username, userID)
		if emailTaken {
			errs = append(errs, MsgEmailTaken)
		}
		if usernameTaken {
			errs = append(errs, MsgUsernameTaken)
		}
	}

	if changingPassword && !passwordAcceptable {
		errs = append(errs, policyErrs...)
	}

	if len(errs) > 0 {
		return failed(cause, errs...), nil
	}

	fields := repository.UserUpdate{Username: username, Email: email}
	if passwordAcceptable {
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return Outcome{}, fmt.Errorf("service: hashing new password: %w", err)
		}
		fields.PasswordHash = &hash
	}

	if err := s.users.Update(ctx, userID, fields); err != nil {
		s.logger.ErrorContext(ctx, "profile update failed", "user_id", userID, "error", err)
		return failed(apperror.ErrInternal, updateFailureMessage(err)), nil
	}

	if err := session.Issue(user.ID); err != nil {
		return Outcome{}, fmt.Errorf("service: reissuing session: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated", "user_id", userID, "password_changed", passwordAcceptable)
	return succeeded(), nil
}

// updateFailureMessage prefers the store's detail, then its message, then
// the generic text.
func updateFailureMessage(err error) string {
	var se *repository.StoreError
	if errors.As(err, &se) {
		if d := strings.TrimSpace(se.Details); d != "" {
			return d
		}
		if m := strings.TrimSpace(se.Message); m != "" {
			return m
		}
	}
	return MsgUpdateFailed
}
