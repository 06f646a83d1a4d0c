package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/google/uuid"
)

// UserRepository keeps users in process memory. Used for STORE_DRIVER=memory
// and in tests.
type UserRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.User
	email map[string]string
	uname map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:  make(map[string]*domain.User),
		email: make(map[string]string),
		uname: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.email[user.Email]; ok {
		return nil, domain.ErrEmailTaken
	}
	if _, ok := r.uname[user.Username]; ok {
		return nil, domain.ErrUsernameTaken
	}

	now := time.Now().UTC()
	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now

	r.byID[u.ID] = &u
	r.email[u.Email] = u.ID
	r.uname[u.Username] = u.ID

	out := u
	return &out, nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.email[email])
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.uname[username])
}

func (r *UserRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.byID))
	r.byID = make(map[string]*domain.User)
	r.email = make(map[string]string)
	r.uname = make(map[string]string)
	return n, nil
}

// get must be called with r.mu held.
func (r *UserRepository) get(id string) (*domain.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}
