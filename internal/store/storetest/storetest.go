// Package storetest provides in-memory versions of the store repositories
// for tests of the layers above it.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/classroll/apiserver/internal/store"
	"github.com/classroll/apiserver/types"
)

// Users is an in-memory stand-in for store.UserRepository.
type Users struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]types.User
}

func NewUsers() *Users {
	return &Users{rows: make(map[int]types.User)}
}

func (f *Users) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *Users) List(_ context.Context, status types.UserStatus, offset, limit int) ([]types.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []types.User
	for _, u := range f.rows {
		if status == "" || u.Status == status {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (f *Users) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.rows[user.ID] = user
	return user, nil
}

func (f *Users) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	f.rows[user.ID] = user
	return user, nil
}

func (f *Users) UpdateEmailDelivery(_ context.Context, id int, sent bool, sentAt *time.Time, emailErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	u.EmailSent = sent
	u.EmailSentAt = sentAt
	u.EmailError = emailErr
	u.UpdatedAt = time.Now()
	f.rows[id] = u
	return nil
}

func (f *Users) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

// Tokens is an in-memory stand-in for store.TokenRepository. The daily cap
// counts tokens per creator.
type Tokens struct {
	mu   sync.Mutex
	rows map[string]types.APIToken
}

func NewTokens() *Tokens {
	return &Tokens{rows: make(map[string]types.APIToken)}
}

func (f *Tokens) CreateWithDailyCap(_ context.Context, token types.APIToken, since time.Time, limit int) (types.APIToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > 0 {
		count := 0
		for _, t := range f.rows {
			if strings.EqualFold(t.CreatedBy, token.CreatedBy) && !t.CreatedAt.Before(since) {
				count++
			}
		}
		if count >= limit {
			return types.APIToken{}, store.ErrLimitReached
		}
	}
	f.rows[token.ID] = token
	return token, nil
}

func (f *Tokens) Get(_ context.Context, id string) (types.APIToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return types.APIToken{}, store.ErrNotFound
	}
	return t, nil
}

func (f *Tokens) ListByCreator(_ context.Context, email string) ([]types.APIToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.APIToken, 0)
	for _, t := range f.rows {
		if strings.EqualFold(t.CreatedBy, email) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *Tokens) ListAll(_ context.Context) ([]types.APIToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.APIToken, 0, len(f.rows))
	for _, t := range f.rows {
		out = append(out, t)
	}
	return out, nil
}

func (f *Tokens) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *Tokens) DeleteByCreator(_ context.Context, email string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, t := range f.rows {
		if strings.EqualFold(t.CreatedBy, email) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *Tokens) UpdateSystem(_ context.Context, id string, system types.System) (types.APIToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return types.APIToken{}, store.ErrNotFound
	}
	t.System = system
	f.rows[id] = t
	return t, nil
}

// Contacts is an in-memory stand-in for store.ContactRepository.
type Contacts struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]types.AdminContact
}

func NewContacts() *Contacts {
	return &Contacts{rows: make(map[int]types.AdminContact)}
}

func (f *Contacts) Create(_ context.Context, c types.AdminContact) (types.AdminContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	f.rows[c.ID] = c
	return c, nil
}

func (f *Contacts) Get(_ context.Context, id int) (types.AdminContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return types.AdminContact{}, store.ErrNotFound
	}
	return c, nil
}

func (f *Contacts) UpdateDelivery(_ context.Context, id int, sent bool, deliveryErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	c.EmailSent = sent
	c.EmailError = deliveryErr
	f.rows[id] = c
	return nil
}

func (f *Contacts) List(_ context.Context) ([]types.AdminContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.AdminContact, 0, len(f.rows))
	for _, c := range f.rows {
		out = append(out, c)
	}
	return out, nil
}

func (f *Contacts) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}
