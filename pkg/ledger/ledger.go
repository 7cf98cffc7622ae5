package ledger

import (
	"context"
	"time"
)

// ProofRecord is one qualifying proof submission for a challenge week.
type ProofRecord struct {
	ParticipantID   string
	ParticipantName string
	ChallengeID     int
	WeekStart       string
	ProofDate       string
	MinimalDose     bool
}

// RewardRecord is a reward issued for a completed challenge week. Key is
// deterministic over (participant, week, challenge) so re-issuing the same
// completion deduplicates instead of double-paying.
type RewardRecord struct {
	Key           string
	ParticipantID string
	ChallengeID   int
	WeekStart     string
	Amount        int
	CreatedAt     time.Time
}

// ParticipantIdentity resolves an opaque participant ID to display data.
type ParticipantIdentity struct {
	ID     string
	Name   string
	Handle string
}

// Ledger is the proof/reward data store the scheduler evaluates against.
type Ledger interface {
	// ProofsForChallengeWeek returns all qualifying proofs for the given
	// challenge and week start date.
	ProofsForChallengeWeek(ctx context.Context, challengeID int, weekStart string) ([]ProofRecord, error)

	// CreateReward issues a reward for a completed week. Idempotent: the
	// same (participant, week, challenge) triple yields one reward record.
	CreateReward(ctx context.Context, participantID string, challengeID int, weekStart string, amount int) (RewardRecord, error)

	// ResolveParticipant returns display identity for a participant, or
	// (nil, nil) when unknown.
	ResolveParticipant(ctx context.Context, participantID string) (*ParticipantIdentity, error)

	// Health reports whether the underlying store is reachable.
	Health(ctx context.Context) error
}
