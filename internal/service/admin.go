package service

import (
	"context"
	"log/slog"

	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

// DefaultPageSize is the admin listing's page size when none is configured.
const DefaultPageSize = 3

// AdminService gates the user listing behind the admin role.
type AdminService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewAdminService(users repository.UserRepository, logger *slog.Logger) *AdminService {
	return &AdminService{users: users, logger: logger}
}

// ListUsers returns one page of users, newest first, for an admin caller.
//
// Failures come back in UserPage.Error rather than as a Go error. A failed
// page fetch still reports TotalCount and TotalPages.
func (s *AdminService) ListUsers(ctx context.Context, session Session, page, pageSize int) model.UserPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	result := model.UserPage{Users: []model.User{}, CurrentPage: page}

	id, ok := session.UserID()
	if !ok {
		result.Error = MsgNotSignedIn
		return result
	}

	caller, err := s.users.FindByID(ctx, id)
	if err != nil || !caller.IsAdmin() {
		s.logger.WarnContext(ctx, "admin listing denied", "user_id", id, "error", err)
		result.Error = MsgNotAdmin
		return result
	}

	total, err := s.users.CountAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "counting users failed", "error", err)
		result.Error = MsgUserCountFailed
		return result
	}
	result.TotalCount = total
	result.TotalPages = (total + pageSize - 1) / pageSize

	users, err := s.users.PageByCreatedAtDesc(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "listing users failed", "page", page, "error", err)
		result.Error = MsgUserListFailed
		return result
	}
	result.Users = users
	return result
}
