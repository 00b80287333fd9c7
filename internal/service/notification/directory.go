package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/leadsla/internal/model"
	"github.com/jwalitptl/leadsla/internal/repository"
)

// userDirectory caches recipient lookups. A scan typically mails the same
// few assignees over and over.
type userDirectory struct {
	repo  repository.UserRepository
	cache *cache.Cache
}

func newUserDirectory(repo repository.UserRepository, ttl time.Duration) *userDirectory {
	d := &userDirectory{repo: repo}
	if ttl > 0 {
		d.cache = cache.New(ttl, 2*ttl)
	}
	return d
}

func (d *userDirectory) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	key := id.String()
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			u := *v.(*model.User)
			return &u, nil
		}
	}

	user, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		cached := *user
		d.cache.SetDefault(key, &cached)
	}
	return user, nil
}
