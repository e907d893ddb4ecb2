package inmem

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

type userRepository struct{ db *DB }

func NewUserRepository(db *DB) *userRepository { return &userRepository{db: db} }

func (r *userRepository) GetByID(_ context.Context, id int) (*model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *u
	return &c, nil
}

func (r *userRepository) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *userRepository) ListStudentsByClass(_ context.Context, classID int) ([]model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []model.User
	for _, u := range r.db.users {
		if u.Role == model.RoleStudent && u.ClassID != nil && *u.ClassID == classID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *userRepository) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Username == u.Username {
			return repository.ErrDuplicateUsername
		}
	}
	u.ID = r.db.nextID()
	u.CreatedAt = r.db.now()
	u.UpdatedAt = u.CreatedAt
	c := *u
	r.db.users[u.ID] = &c
	return nil
}

type classRepository struct{ db *DB }

func NewClassRepository(db *DB) *classRepository { return &classRepository{db: db} }

func (r *classRepository) GetByID(_ context.Context, id int) (*model.Class, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.classes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cc := *c
	return &cc, nil
}

func (r *classRepository) List(_ context.Context) ([]model.Class, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []model.Class
	for _, c := range r.db.classes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *classRepository) Create(_ context.Context, c *model.Class) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.classes {
		if existing.Name == c.Name {
			return repository.ErrDuplicateClass
		}
	}
	c.ID = r.db.nextID()
	c.CreatedAt = r.db.now()
	c.UpdatedAt = c.CreatedAt
	cc := *c
	r.db.classes[c.ID] = &cc
	return nil
}
