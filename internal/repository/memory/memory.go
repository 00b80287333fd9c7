package memory

import (
	"sync"

	"github.com/jwalitptl/leadsla/internal/repository"
	"github.com/jwalitptl/leadsla/pkg/validator"
)

// Memory is an in-process record store with the same semantics as the
// postgres repositories, including the conditional notification insert.
type Memory struct {
	mu            sync.RWMutex
	leads         *leadRepository
	users         *userRepository
	statusHistory *statusHistoryRepository
	notifications *notificationRepository
}

var _ repository.Store = &Memory{}

func New() *Memory {
	m := &Memory{}
	v := validator.New()
	m.leads = &leadRepository{mem: m, data: make(map[string]*leadRow)}
	m.users = &userRepository{mem: m, data: make(map[string]*userRow)}
	m.statusHistory = &statusHistoryRepository{mem: m, validator: v}
	m.notifications = &notificationRepository{mem: m, validator: v}
	return m
}

func (m *Memory) Leads() repository.LeadRepository {
	return m.leads
}

func (m *Memory) Users() repository.UserRepository {
	return m.users
}

func (m *Memory) StatusHistory() repository.StatusHistoryRepository {
	return m.statusHistory
}

func (m *Memory) Notifications() repository.NotificationRepository {
	return m.notifications
}
