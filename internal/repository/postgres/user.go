package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
)

type userRepository struct {
	*BaseRepository
}

func NewUserRepository(base *BaseRepository) repository.UserRepository {
	return &userRepository{BaseRepository: base}
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	start := time.Now()
	query := `SELECT id, COALESCE(name, '') AS name, email, COALESCE(role, '') AS role FROM users WHERE id = $1`

	var user model.User
	err := r.GetDB().GetContext(ctx, &user, query, id)
	if err := r.observe("get_user", "user", start, err); err != nil {
		return nil, err
	}
	return &user, nil
}
