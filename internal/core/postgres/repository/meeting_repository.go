package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type meetingRepository struct {
	db *gorm.DB
}

func NewMeetingRepository(db *gorm.DB) ports.MeetingRepository {
	return &meetingRepository{db: db}
}

func (r *meetingRepository) GetMeeting(ctx context.Context, companyID, meetingID uuid.UUID) (*domain.Meeting, error) {
	var meeting domain.Meeting
	err := r.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", meetingID, companyID).
		First(&meeting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load meeting: %v", domain.ErrPersistenceFailure, err)
	}
	return &meeting, nil
}

func (r *meetingRepository) SetMeetingState(ctx context.Context, meetingID uuid.UUID, state domain.MeetingState) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Meeting{}).
		Where("id = ?", meetingID).
		Update("state", state).Error
	if err != nil {
		return fmt.Errorf("%w: update meeting state: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *meetingRepository) LatestTranscript(ctx context.Context, meetingID uuid.UUID) (*domain.Transcript, error) {
	var transcript domain.Transcript
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at DESC").
		First(&transcript).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load transcript: %v", domain.ErrPersistenceFailure, err)
	}
	return &transcript, nil
}

func (r *meetingRepository) LatestAsset(ctx context.Context, meetingID uuid.UUID, assetType string) (*domain.MeetingAsset, error) {
	var asset domain.MeetingAsset
	err := r.db.WithContext(ctx).
		Where("meeting_id = ? AND type = ?", meetingID, assetType).
		Order("created_at DESC").
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load asset: %v", domain.ErrPersistenceFailure, err)
	}
	return &asset, nil
}

func (r *meetingRepository) IngestTranscript(ctx context.Context, meetingID uuid.UUID, transcript *domain.Transcript, asset *domain.MeetingAsset) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.Meeting{}).
			Where("id = ?", meetingID).
			Update("state", domain.MeetingProcessing).Error
		if err != nil {
			return err
		}
		if err := tx.Create(transcript).Error; err != nil {
			return err
		}
		return tx.Create(asset).Error
	})
	if err != nil {
		return fmt.Errorf("%w: ingest transcript: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// UpsertOutput keys on meeting_id so re-running persist_outputs after a
// resume updates the single row instead of adding another.
func (r *meetingRepository) UpsertOutput(ctx context.Context, output *domain.MeetingOutput) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "meeting_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"minutes_md", "decisions", "action_items", "risks",
			}),
		}).
		Create(output).Error
	if err != nil {
		return fmt.Errorf("%w: upsert meeting output: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *meetingRepository) OutputByMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.MeetingOutput, error) {
	var output domain.MeetingOutput
	err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).First(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load meeting output: %v", domain.ErrPersistenceFailure, err)
	}
	return &output, nil
}
