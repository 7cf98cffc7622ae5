package rotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the single source of truth for "where are we in the cycle". Every
// mutator persists the full record before returning (write-through), so a
// crash between operations leaves the backend consistent with the last
// completed step.
type Store struct {
	mu         sync.Mutex
	backend    Backend
	logger     *zap.Logger
	groupCount int
	state      State
}

// NewStore loads the persisted state, synthesizing and persisting the
// zero-value default when the backend holds nothing yet.
func NewStore(ctx context.Context, logger *zap.Logger, backend Backend, groupCount int) (*Store, error) {
	if groupCount <= 0 {
		return nil, fmt.Errorf("group count must be positive, got %d", groupCount)
	}

	s := &Store{
		backend:    backend,
		logger:     logger,
		groupCount: groupCount,
	}

	data, err := backend.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.state = defaultState()
		if err := s.persist(ctx, s.state); err != nil {
			return nil, fmt.Errorf("persist default state: %w", err)
		}
		logger.Info("Created default rotation state")
	case err != nil:
		return nil, err
	default:
		var loaded State
		if jsonErr := json.Unmarshal(data, &loaded); jsonErr != nil {
			// A torn or hand-edited record; start over rather than crash.
			logger.Error("Persisted rotation state is malformed, resetting to default", zap.Error(jsonErr))
			s.state = defaultState()
			if err := s.persist(ctx, s.state); err != nil {
				return nil, fmt.Errorf("persist default state: %w", err)
			}
		} else {
			if loaded.JoinedUserIDs == nil {
				loaded.JoinedUserIDs = []string{}
			}
			s.state = loaded
			logger.Info("Loaded rotation state",
				zap.Int("challengeIndex", loaded.CurrentChallengeIndex),
				zap.String("weekStart", loaded.CurrentWeekStart),
				zap.Int("pollGroup", loaded.PollChallengeGroup),
				zap.Int64("version", loaded.Version))
		}
	}

	return s, nil
}

// persist writes next with a bumped version. On a lost CAS the in-memory
// state is refreshed from the backend so the caller sees current data.
func (s *Store) persist(ctx context.Context, next State) error {
	loadedVersion := s.state.Version
	next.Version = loadedVersion + 1
	next.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(&next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rotation state: %w", err)
	}

	if err := s.backend.Save(ctx, data, loadedVersion); err != nil {
		if errors.Is(err, ErrStateConflict) {
			if fresh, loadErr := s.backend.Load(ctx); loadErr == nil {
				var reloaded State
				if json.Unmarshal(fresh, &reloaded) == nil {
					s.state = reloaded
				}
			}
		}
		return err
	}

	s.state = next
	return nil
}

// State returns a copy of the current record.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	out := s.state
	out.JoinedUserIDs = append([]string(nil), s.state.JoinedUserIDs...)
	return out
}

// CurrentChallengeIndex returns the active catalog index.
func (s *Store) CurrentChallengeIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentChallengeIndex
}

// CurrentWeek returns the active week bounds (empty before the first deploy).
func (s *Store) CurrentWeek() (weekStart, weekEnd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentWeekStart, s.state.CurrentWeekEnd
}

// Phase returns the current cycle phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase
}

// SetPhase records the cycle phase.
func (s *Store) SetPhase(ctx context.Context, p Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snapshot()
	next.Phase = p
	return s.persist(ctx, next)
}

// StartNewWeek atomically sets the new challenge index and week bounds,
// clears joined participants and the active challenge message reference, and
// marks the cycle as deployed. The only operation that resets membership;
// called exactly once per deploy cycle.
func (s *Store) StartNewWeek(ctx context.Context, weekStart, weekEnd string, newChallengeIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot()
	next.CurrentChallengeIndex = newChallengeIndex
	next.CurrentWeekStart = weekStart
	next.CurrentWeekEnd = weekEnd
	next.JoinedUserIDs = []string{}
	next.ChallengeMessageID = ""
	next.Phase = PhaseDeployed

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.logger.Info("Started new challenge week",
		zap.Int("challengeIndex", newChallengeIndex),
		zap.String("weekStart", weekStart),
		zap.String("weekEnd", weekEnd))
	return nil
}

// AddParticipant inserts id into the joined set. Duplicate calls are no-ops.
func (s *Store) AddParticipant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.JoinedUserIDs {
		if existing == id {
			return nil
		}
	}

	next := s.snapshot()
	next.JoinedUserIDs = append(next.JoinedUserIDs, id)
	return s.persist(ctx, next)
}

// HasParticipant reports whether id joined during the current week.
func (s *Store) HasParticipant(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.state.JoinedUserIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// ParticipantCount returns the number of joined participants this week.
func (s *Store) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.JoinedUserIDs)
}

// SetPollMessageRef persists the reference of the posted poll and marks the
// cycle as polling.
func (s *Store) SetPollMessageRef(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snapshot()
	next.PollMessageID = ref
	next.Phase = PhasePolling
	return s.persist(ctx, next)
}

// PollMessageRef returns the current poll message reference, if any.
func (s *Store) PollMessageRef() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PollMessageID, s.state.PollMessageID != ""
}

// SetChallengeMessageRef persists the reference of the deployed announcement.
func (s *Store) SetChallengeMessageRef(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snapshot()
	next.ChallengeMessageID = ref
	return s.persist(ctx, next)
}

// ChallengeMessageRef returns the deployed announcement reference, if any.
func (s *Store) ChallengeMessageRef() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ChallengeMessageID, s.state.ChallengeMessageID != ""
}

// PollGroup returns the group the next poll will be drawn from.
func (s *Store) PollGroup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PollChallengeGroup
}

// GroupCount returns the configured number of poll groups.
func (s *Store) GroupCount() int {
	return s.groupCount
}

// RotatePollGroup advances the group pointer by one, wrapping at the group
// count. Called once per poll job, after the poll is posted, so a failed
// post can be retried against the same group.
func (s *Store) RotatePollGroup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot()
	next.PollChallengeGroup = (next.PollChallengeGroup + 1) % s.groupCount
	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.logger.Debug("Rotated poll group", zap.Int("pollGroup", s.state.PollChallengeGroup))
	return nil
}

// RecordEvaluation stores the evaluation timestamp and marks the cycle as
// evaluated.
func (s *Store) RecordEvaluation(ctx context.Context, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snapshot()
	next.LastEvaluationDate = ts.UTC().Format(time.RFC3339)
	next.Phase = PhaseEvaluated
	return s.persist(ctx, next)
}

// LastEvaluation returns the timestamp of the last completed evaluation.
func (s *Store) LastEvaluation() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LastEvaluationDate == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, s.state.LastEvaluationDate)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Export serializes the full state for operational debugging and migration.
func (s *Store) Export() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export rotation state: %w", err)
	}
	return string(data), nil
}

// Import fully replaces the state from a JSON document. The replacement is
// validated before committing; malformed input leaves the prior state
// intact.
func (s *Store) Import(ctx context.Context, doc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var incoming State
	if err := json.Unmarshal([]byte(doc), &incoming); err != nil {
		return fmt.Errorf("import rotation state: %w", err)
	}
	if err := incoming.Validate(s.groupCount); err != nil {
		return fmt.Errorf("import rotation state: %w", err)
	}

	// Adopt the incoming record but keep our version lineage so the CAS
	// chain stays unbroken.
	incoming.Version = s.state.Version
	if err := s.persist(ctx, incoming); err != nil {
		return err
	}

	s.logger.Info("Imported rotation state",
		zap.Int("challengeIndex", incoming.CurrentChallengeIndex),
		zap.String("weekStart", incoming.CurrentWeekStart))
	return nil
}
