package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/repository"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
//
// The uniqueness checks run concurrently, so every method takes the lock.
// Fields ending in Err make the matching method fail.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int
	clock  time.Time

	findByEmailErr error
	findByIDErr    error
	existsErr      error
	insertErr      error
	updateErr      error
	deleteErr      error
	countErr       error
	pageErr        error

	insertCalls   int
	updateCalls   int
	findByIDCalls int
	lastUpdate    repository.UserUpdate
	pageOffset    int
	pageLimit     int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[string]*model.User),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// add stores a user directly, bypassing Insert's bookkeeping.
func (f *fakeUserRepo) add(u model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	f.clock = f.clock.Add(time.Minute)
	u.CreatedAt = f.clock
	u.UpdatedAt = f.clock
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUserRepo) get(id string) (model.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, false
	}
	return *u, true
}

func (f *fakeUserRepo) findWhere(match func(*model.User) bool, key string) (*model.User, error) {
	for _, u := range f.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findByEmailErr != nil {
		return nil, f.findByEmailErr
	}
	return f.findWhere(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findByIDCalls++
	if f.findByIDErr != nil {
		return nil, f.findByIDErr
	}
	return f.findWhere(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findWhere(func(u *model.User) bool { return u.Username == username }, username)
}

func (f *fakeUserRepo) ExistsByEmailExcept(ctx context.Context, email, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, err := f.findWhere(func(u *model.User) bool { return u.Email == email && u.ID != excludeID }, email)
	return err == nil, nil
}

func (f *fakeUserRepo) ExistsByUsernameExcept(ctx context.Context, username, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, err := f.findWhere(func(u *model.User) bool { return u.Username == username && u.ID != excludeID }, username)
	return err == nil, nil
}

func (f *fakeUserRepo) Insert(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	f.insertCalls++
	err := f.insertErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	stored := f.add(*user)
	*user = *stored
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, id string, fields repository.UserUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastUpdate = fields
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Username = fields.Username
	u.Email = fields.Email
	if fields.PasswordHash != nil {
		u.PasswordHash = *fields.PasswordHash
	}
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) CountAll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.users), nil
}

func (f *fakeUserRepo) PageByCreatedAtDesc(ctx context.Context, offset, limit int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageOffset, f.pageLimit = offset, limit
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	all := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []model.User{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

// =========================================================================
// FAKE SESSION
// =========================================================================

// fakeSession records cookie writes instead of touching a response.
type fakeSession struct {
	userID string // "" means no cookie

	issueErr  error
	revokeErr error

	issued  []string
	revoked int
}

func (s *fakeSession) UserID() (string, bool) {
	return s.userID, s.userID != ""
}

func (s *fakeSession) Issue(userID string) error {
	if s.issueErr != nil {
		return s.issueErr
	}
	s.issued = append(s.issued, userID)
	return nil
}

func (s *fakeSession) Revoke() error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	s.revoked++
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

var errDatabaseDown = errors.New("database is on fire")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testHasher uses bcrypt cost 4 so tests stay fast.
func testHasher() *auth.PasswordService {
	return auth.NewPasswordServiceForTest(4)
}

func newTestAuthService(repo *fakeUserRepo) *AuthService {
	return NewAuthService(repo, testHasher(), StandardPolicy, DefaultPaths, testLogger())
}

// addUserWithPassword stores a user whose password hashes to plaintext.
func addUserWithPassword(t *testing.T, repo *fakeUserRepo, username, email, plaintext string, role model.Role) *model.User {
	t.Helper()
	hash, err := testHasher().Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	return repo.add(model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
}
