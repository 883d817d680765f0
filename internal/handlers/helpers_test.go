package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/credentials"
	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/internal/storage"
	"github.com/classroll/apiserver/internal/store/storetest"
	"github.com/classroll/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse"

type nopMailer struct{}

func (nopMailer) SendApproval(context.Context, types.User) error        { return nil }
func (nopMailer) SendContact(context.Context, types.AdminContact) error { return nil }

type testAPI struct {
	router http.Handler
	users  *storetest.Users
	tokens *services.TokenService
}

func passthrough(next http.Handler) http.Handler {
	return next
}

// newTestAPI mounts the auth, token, user and video routes over in-memory
// repositories and a temporary video directory.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zaptest.NewLogger(t)

	users := storetest.NewUsers()
	tokenRepo := storetest.NewTokens()
	contacts := storetest.NewContacts()

	signer, err := auth.NewSigner("handler-test-secret")
	require.NoError(t, err)

	dispatcher := services.NewDispatcher(users, contacts, nopMailer{}, nil, log)
	userSvc := services.NewUserService(users, tokenRepo, credentials.NewMemoryDirectory(), dispatcher, log)
	tokenSvc := services.NewTokenService(tokenRepo, users, signer, time.UTC, time.Hour, log)
	authn := services.NewAuthenticator(signer, userSvc, tokenSvc)

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	videos := NewVideoHandler(services.NewVideoService(storage.NewStorage(local), log), log)

	authenticate := Authenticate(authn, log)
	guard := NewGuard(auth.DefaultPolicy(), log)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(userSvc, tokenSvc, false, log), authenticate, passthrough)
	})
	r.With(authenticate).Route("/videos/play-video", func(r chi.Router) {
		VideoPlayRouter(r, videos, guard)
	})
	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Route("/tokens", func(r chi.Router) {
			TokenRouter(r, NewTokenHandler(tokenSvc, log), guard)
		})
		r.Route("/pending-users", func(r chi.Router) {
			UserRouter(r, NewUserHandler(userSvc, log), guard)
		})
		r.Route("/videos", func(r chi.Router) {
			VideoRouter(r, videos, guard)
		})
	})

	return &testAPI{router: r, users: users, tokens: tokenSvc}
}

// seed stores an approved account with testPassword.
func (a *testAPI) seed(t *testing.T, u types.User) types.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u.PasswordHash = string(hashed)
	if u.Role == "" {
		u.Role = types.RoleUser
	}
	if u.Status == "" {
		u.Status = types.StatusApproved
	}
	if u.AccessType == "" {
		u.AccessType = types.AccessUnlimited
	}
	if u.SystemAccess == "" {
		u.SystemAccess = types.SystemBoth
	}
	created, err := a.users.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (a *testAPI) session(t *testing.T, u types.User) string {
	t.Helper()
	token, _, err := a.tokens.IssueSession(u)
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
