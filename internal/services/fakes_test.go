package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/credentials"
	"github.com/classroll/apiserver/internal/store/storetest"
	"github.com/classroll/apiserver/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type recordingMailer struct {
	mu        sync.Mutex
	approvals []types.User
	contacts  []types.AdminContact
	err       error
}

func (m *recordingMailer) SendApproval(_ context.Context, user types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals = append(m.approvals, user)
	return m.err
}

func (m *recordingMailer) SendContact(_ context.Context, contact types.AdminContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, contact)
	return m.err
}

// failingDirectory rejects every call.
type failingDirectory struct {
	err error
}

func (d failingDirectory) CreateAccount(context.Context, string, string) (string, error) {
	return "", d.err
}

func (d failingDirectory) DeleteAccount(context.Context, string) error {
	return d.err
}

// testNow tracks the wall clock so signed tokens stay valid when parsed.
var testNow = time.Now().UTC().Truncate(time.Second)

type harness struct {
	users     *storetest.Users
	tokens    *storetest.Tokens
	contacts  *storetest.Contacts
	directory *credentials.MemoryDirectory
	mailer    *recordingMailer
	signer    *auth.Signer

	dispatcher *Dispatcher
	userSvc    *UserService
	tokenSvc   *TokenService
	contactSvc *ContactService
	authn      *Authenticator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)

	h := &harness{
		users:     storetest.NewUsers(),
		tokens:    storetest.NewTokens(),
		contacts:  storetest.NewContacts(),
		directory: credentials.NewMemoryDirectory(),
		mailer:    &recordingMailer{},
	}
	signer, err := auth.NewSigner("test-secret")
	require.NoError(t, err)
	h.signer = signer

	h.dispatcher = NewDispatcher(h.users, h.contacts, h.mailer, nil, log)
	h.dispatcher.now = func() time.Time { return testNow }
	h.userSvc = NewUserService(h.users, h.tokens, h.directory, h.dispatcher, log)
	h.userSvc.now = func() time.Time { return testNow }
	h.tokenSvc = NewTokenService(h.tokens, h.users, signer, time.UTC, 24*time.Hour, log)
	h.tokenSvc.now = func() time.Time { return testNow }
	h.contactSvc = NewContactService(h.contacts, h.dispatcher, log)
	h.authn = NewAuthenticator(signer, h.userSvc, h.tokenSvc)
	return h
}

// seedUser stores a user directly, bypassing signup.
func (h *harness) seedUser(t *testing.T, u types.User) types.User {
	t.Helper()
	if u.PasswordHash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
		require.NoError(t, err)
		u.PasswordHash = string(hashed)
	}
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
	created, err := h.users.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func principalFor(u types.User) auth.Principal {
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, System: u.SystemAccess, Kind: auth.KindSession}
}
