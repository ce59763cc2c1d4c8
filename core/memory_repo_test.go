package core

import (
	"context"
	"sync"
	"time"
)

// memoryUserRepo is an in-memory UserRepository for tests. Writes hold the
// lock so concurrent readers observe either the pre- or post-write record.
type memoryUserRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]UserRecord
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]UserRecord{}}
}

func (r *memoryUserRepo) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (r *memoryUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *memoryUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUserRepo) Create(_ context.Context, u UserRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	r.users[u.Username] = u
	return u.ID, nil
}

func (r *memoryUserRepo) UpdateProfile(_ context.Context, username, firstName, lastName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return ErrNotFound
	}
	u.FirstName = firstName
	u.LastName = lastName
	r.users[username] = u
	return nil
}

func (r *memoryUserRepo) DeleteByUsername(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; !ok {
		return ErrNotFound
	}
	delete(r.users, username)
	return nil
}

func (r *memoryUserRepo) HasAdmin(_ context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if HasRole(u.Roles, RoleAdmin) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUserRepo) List(_ context.Context, page, perPage int) ([]UserListItem, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]UserListItem, 0, len(r.users))
	for _, u := range r.users {
		items = append(items, UserListItem{
			ID: u.ID, Username: u.Username, Email: u.Email,
			Roles: RoleNames(u.Roles), CreatedAt: u.CreatedAt,
		})
	}
	return items, len(items), nil
}
