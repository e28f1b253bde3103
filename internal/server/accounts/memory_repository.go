package accounts

import (
	"context"
	"sync"

	"github.com/winds-n/member-api/internal/common"
)

// MemoryRepository is an in-memory Repository used in tests and local
// development. Documents are copied on the way in and out so callers cannot
// mutate stored state without going through Update, mirroring a real
// document store.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*User)}
}

func copyUser(u *User) *User {
	c := *u
	c.ClientList = make([]Client, len(u.ClientList))
	copy(c.ClientList, u.ClientList)
	return &c
}

func (r *MemoryRepository) FindByUserID(ctx context.Context, userid string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userid]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *MemoryRepository) FindByValidationKey(ctx context.Context, key string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.EmailValidKey != nil && *u.EmailValidKey == key {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) Insert(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.UserID] = copyUser(user)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, userid string, user *User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userid]; !ok {
		return 0, nil
	}
	r.users[userid] = copyUser(user)
	return 1, nil
}

func (r *MemoryRepository) Remove(ctx context.Context, userid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userid]; !ok {
		return 0, nil
	}
	delete(r.users, userid)
	return 1, nil
}
