package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/leadsla/internal/repository"
	"github.com/jwalitptl/leadsla/pkg/metrics"
)

type store struct {
	leads         repository.LeadRepository
	users         repository.UserRepository
	statusHistory repository.StatusHistoryRepository
	notifications repository.NotificationRepository
}

var _ repository.Store = (*store)(nil)

// NewStore wires every postgres repository over one connection pool.
func NewStore(db *sqlx.DB, m *metrics.Metrics) repository.Store {
	base := NewBaseRepository(db, m)
	return &store{
		leads:         NewLeadRepository(base),
		users:         NewUserRepository(base),
		statusHistory: NewStatusHistoryRepository(base),
		notifications: NewNotificationRepository(base),
	}
}

func (s *store) Leads() repository.LeadRepository                  { return s.leads }
func (s *store) Users() repository.UserRepository                  { return s.users }
func (s *store) StatusHistory() repository.StatusHistoryRepository { return s.statusHistory }
func (s *store) Notifications() repository.NotificationRepository  { return s.notifications }
