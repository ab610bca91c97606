// Package memory provides in-process implementations of the core ports.
// They back the unit tests and the dev profile; semantics mirror the
// postgres repositories, including the append-only checkpoint rules.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.jetify.com/typeid"
	"gorm.io/datatypes"

	"opsdesk/internal/core/ports"
	"opsdesk/internal/domain"
)

type threadKey struct {
	threadID  string
	namespace string
}

// CheckpointStore keeps checkpoint lineages in memory. Safe for
// concurrent use.
type CheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[threadKey][]domain.Checkpoint
	writes      map[string][]domain.CheckpointWrite
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[threadKey][]domain.Checkpoint),
		writes:      make(map[string][]domain.CheckpointWrite),
	}
}

var _ ports.CheckpointStore = (*CheckpointStore)(nil)

func (s *CheckpointStore) GetLatest(ctx context.Context, threadID, namespace, checkpointID string) (*ports.CheckpointTuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.checkpoints[threadKey{threadID, namespace}]
	if len(chain) == 0 {
		return nil, domain.ErrNotFound
	}

	var found *domain.Checkpoint
	if checkpointID == "" {
		found = &chain[len(chain)-1]
	} else {
		for i := range chain {
			if chain[i].CheckpointID == checkpointID {
				found = &chain[i]
				break
			}
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}

	tuple := &ports.CheckpointTuple{Checkpoint: *found}
	tuple.PendingWrites = append(tuple.PendingWrites, s.writes[found.CheckpointID]...)
	return tuple, nil
}

func (s *CheckpointStore) List(ctx context.Context, threadID, namespace string, limit int) ([]domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.checkpoints[threadKey{threadID, namespace}]
	out := make([]domain.Checkpoint, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, chain[i])
	}
	return out, nil
}

func (s *CheckpointStore) Put(ctx context.Context, threadID, namespace, parentID string, state, metadata datatypes.JSON) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := threadKey{threadID, namespace}
	chain := s.checkpoints[key]

	if parentID == "" {
		if len(chain) > 0 {
			return "", domain.ErrStaleParent
		}
	} else {
		if len(chain) == 0 || chain[len(chain)-1].CheckpointID != parentID {
			return "", domain.ErrStaleParent
		}
	}

	id, err := typeid.WithPrefix("ckpt")
	if err != nil {
		return "", err
	}
	cp := domain.Checkpoint{
		ID:           uuid.New(),
		ThreadID:     threadID,
		Namespace:    namespace,
		CheckpointID: id.String(),
		State:        state,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	if parentID != "" {
		parent := parentID
		cp.ParentCheckpointID = &parent
	}
	s.checkpoints[key] = append(chain, cp)
	return cp.CheckpointID, nil
}

func (s *CheckpointStore) PutWrites(ctx context.Context, threadID, namespace, checkpointID, stepID string, writes datatypes.JSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes[checkpointID] = append(s.writes[checkpointID], domain.CheckpointWrite{
		ID:           uuid.New(),
		ThreadID:     threadID,
		Namespace:    namespace,
		CheckpointID: checkpointID,
		StepID:       stepID,
		Writes:       writes,
		CreatedAt:    time.Now(),
	})
	return nil
}

func (s *CheckpointStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, chain := range s.checkpoints {
		if key.threadID != threadID {
			continue
		}
		for _, cp := range chain {
			delete(s.writes, cp.CheckpointID)
		}
		delete(s.checkpoints, key)
	}
	return nil
}
