package credentials

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory keeps accounts in process memory. It backs local
// development and tests.
type MemoryDirectory struct {
	mu       sync.Mutex
	accounts map[string]memoryAccount
}

type memoryAccount struct {
	uid          string
	passwordHash string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{accounts: make(map[string]memoryAccount)}
}

func (d *MemoryDirectory) CreateAccount(_ context.Context, email, passwordHash string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.accounts[key]; ok {
		return existing.uid, ErrAccountExists
	}
	uid := uuid.NewString()
	d.accounts[key] = memoryAccount{uid: uid, passwordHash: passwordHash}
	return uid, nil
}

func (d *MemoryDirectory) DeleteAccount(_ context.Context, email string) error {
	key := strings.ToLower(strings.TrimSpace(email))

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[key]; !ok {
		return ErrAccountNotFound
	}
	delete(d.accounts, key)
	return nil
}

// Has reports whether an account exists for email.
func (d *MemoryDirectory) Has(email string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.accounts[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
