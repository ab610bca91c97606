package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type CalendarRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID]domain.CalendarEvent
}

func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{events: make(map[uuid.UUID]domain.CalendarEvent)}
}

var _ ports.CalendarRepository = (*CalendarRepository)(nil)

func (r *CalendarRepository) AddEvent(event domain.CalendarEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
}

func (r *CalendarRepository) GetEvent(ctx context.Context, companyID, eventID uuid.UUID) (*domain.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok || event.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return &event, nil
}

func (r *CalendarRepository) CountEventsBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, event := range r.events {
		if event.CompanyID != companyID {
			continue
		}
		if event.StartsAt.Before(from) || !event.StartsAt.Before(to) {
			continue
		}
		count++
	}
	return count, nil
}
