package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"Tianguis/internal/config"
	"Tianguis/internal/handlers"
	"Tianguis/internal/middleware"
	"Tianguis/internal/model"
	"Tianguis/internal/repo"
	"Tianguis/internal/service"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// Minimal mocks
type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	args := m.Called(ctx, login)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetUserByKey(ctx context.Context, key string) (*model.User, error) {
	args := m.Called(ctx, key)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) SaveIfNewer(ctx context.Context, user *model.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

var _ repo.UserRepository = (*mockUserRepo)(nil)

// newTestRouter собирает роутер; ur == nil: пользователи тоже в настоящей SQLite.
func newTestRouter(t *testing.T, ur repo.UserRepository) http.Handler {
	t.Helper()
	db, err := repo.InitDB(filepath.Join(t.TempDir(), "server.sqlite"))
	require.NoError(t, err)
	if ur == nil {
		ur = repo.NewUserRepository(db)
	}
	cfg := &config.Config{AuthSecret: testSecret}
	logger := zap.NewNop().Sugar()

	userSvc := service.NewUserService(ur)
	listingSvc := service.NewListingService(repo.NewListingRepository(db), logger)
	return handlers.NewHandler(userSvc, listingSvc, logger, cfg).Router
}

func addAuthCookie(t *testing.T, req *http.Request, userKey string) {
	t.Helper()
	rr := httptest.NewRecorder()
	_, err := middleware.SetLoginCookie(rr, userKey, testSecret)
	require.NoError(t, err)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
}

func hasAuthCookie(rr *httptest.ResponseRecorder) bool {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.AuthCookie && c.Value != "" {
			return true
		}
	}
	return false
}
