package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type MeetingRepository struct {
	mu          sync.Mutex
	meetings    map[uuid.UUID]domain.Meeting
	transcripts []domain.Transcript
	assets      []domain.MeetingAsset
	outputs     map[uuid.UUID]domain.MeetingOutput
}

func NewMeetingRepository() *MeetingRepository {
	return &MeetingRepository{
		meetings: make(map[uuid.UUID]domain.Meeting),
		outputs:  make(map[uuid.UUID]domain.MeetingOutput),
	}
}

var _ ports.MeetingRepository = (*MeetingRepository)(nil)

// AddMeeting seeds a meeting row, for tests.
func (r *MeetingRepository) AddMeeting(meeting domain.Meeting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[meeting.ID] = meeting
}

func (r *MeetingRepository) GetMeeting(ctx context.Context, companyID, meetingID uuid.UUID) (*domain.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting, ok := r.meetings[meetingID]
	if !ok || meeting.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return &meeting, nil
}

func (r *MeetingRepository) SetMeetingState(ctx context.Context, meetingID uuid.UUID, state domain.MeetingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting, ok := r.meetings[meetingID]
	if !ok {
		return domain.ErrNotFound
	}
	meeting.State = state
	r.meetings[meetingID] = meeting
	return nil
}

func (r *MeetingRepository) LatestTranscript(ctx context.Context, meetingID uuid.UUID) (*domain.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.transcripts) - 1; i >= 0; i-- {
		if r.transcripts[i].MeetingID == meetingID {
			transcript := r.transcripts[i]
			return &transcript, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MeetingRepository) LatestAsset(ctx context.Context, meetingID uuid.UUID, assetType string) (*domain.MeetingAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.assets) - 1; i >= 0; i-- {
		if r.assets[i].MeetingID == meetingID && r.assets[i].Type == assetType {
			asset := r.assets[i]
			return &asset, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MeetingRepository) IngestTranscript(ctx context.Context, meetingID uuid.UUID, transcript *domain.Transcript, asset *domain.MeetingAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting, ok := r.meetings[meetingID]
	if !ok {
		return domain.ErrNotFound
	}
	meeting.State = domain.MeetingProcessing
	r.meetings[meetingID] = meeting
	r.transcripts = append(r.transcripts, *transcript)
	r.assets = append(r.assets, *asset)
	return nil
}

func (r *MeetingRepository) UpsertOutput(ctx context.Context, output *domain.MeetingOutput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.outputs[output.MeetingID]
	if ok {
		existing.MinutesMD = output.MinutesMD
		existing.Decisions = output.Decisions
		existing.ActionItems = output.ActionItems
		existing.Risks = output.Risks
		r.outputs[output.MeetingID] = existing
		return nil
	}
	stored := *output
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.CreatedAt = time.Now()
	r.outputs[output.MeetingID] = stored
	return nil
}

func (r *MeetingRepository) OutputByMeeting(ctx context.Context, meetingID uuid.UUID) (*domain.MeetingOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	output, ok := r.outputs[meetingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &output, nil
}

// OutputCount reports how many output rows exist, for idempotency tests.
func (r *MeetingRepository) OutputCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outputs)
}
