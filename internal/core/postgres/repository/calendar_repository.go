package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type calendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) ports.CalendarRepository {
	return &calendarRepository{db: db}
}

func (r *calendarRepository) GetEvent(ctx context.Context, companyID, eventID uuid.UUID) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	err := r.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", eventID, companyID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load calendar event: %v", domain.ErrPersistenceFailure, err)
	}
	return &event, nil
}

func (r *calendarRepository) CountEventsBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.CalendarEvent{}).
		Where("company_id = ? AND starts_at >= ? AND starts_at < ?", companyID, from, to).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count calendar events: %v", domain.ErrPersistenceFailure, err)
	}
	return count, nil
}
