package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
)

type userRow struct {
	user model.User
}

type userRepository struct {
	mem  *Memory
	data map[string]*userRow
}

func (m *Memory) PutUser(user *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users.data[user.ID.String()] = &userRow{user: *user}
}

func (r *userRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mem.mu.RLock()
	defer r.mem.mu.RUnlock()

	row, ok := r.data[id.String()]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	u := row.user
	return &u, nil
}
