package announce

import (
	"context"
	"errors"
	"time"

	"github.com/habitforge/challenge-engine/pkg/catalog"
)

// ErrMessageNotFound signals that a referenced message no longer exists.
// The scheduler treats this as "fall back to sequential rotation".
var ErrMessageNotFound = errors.New("announcement message not found")

// MessageRef is an opaque handle to a posted message.
type MessageRef string

// PollOption is one selectable entry in a weekly challenge poll.
type PollOption struct {
	Position         int
	Name             string
	Category         string
	DailyRequirement string
	MinimalDose      string
}

// ProgressStats is the aggregate snapshot posted by the mid-week reminder.
type ProgressStats struct {
	ChallengeName    string
	DaysRequired     int
	ParticipantCount int
	TotalProofs      int
	AvgProofs        float64
	OnTrackCount     int
	DaysElapsed      int
	DaysRemaining    int
}

// ParticipantProgress is one participant's derived standing for a week.
// Recomputed from ledger queries at evaluation time, never stored.
type ParticipantProgress struct {
	ParticipantID    string
	Name             string
	ProofsSubmitted  int
	DaysRequired     int
	Completed        bool
	ProofDates       []string
	MinimalDoseCount int
	FullProofCount   int
}

// EvaluationResult is the full outcome of a weekly evaluation, posted then
// discarded.
type EvaluationResult struct {
	ChallengeID         int
	ChallengeName       string
	WeekStart           string
	WeekEnd             string
	TotalParticipants   int
	Winners             []ParticipantProgress
	Participants        []ParticipantProgress
	TotalRewardsAwarded int
	EvaluatedAt         time.Time
}

// Channel is the chat/notification surface the scheduler posts to.
type Channel interface {
	// PostPoll renders one structured message with a selectable marker per
	// option and returns its reference.
	PostPoll(ctx context.Context, options []PollOption) (MessageRef, error)

	// PostAnnouncement publishes the deployed challenge for the new week.
	PostAnnouncement(ctx context.Context, challenge catalog.Challenge, weekStart, weekEnd, rewardTerms string) (MessageRef, error)

	// PostProgressSummary publishes the mid-week progress snapshot.
	PostProgressSummary(ctx context.Context, stats ProgressStats) (MessageRef, error)

	// PostResults publishes the weekly evaluation outcome.
	PostResults(ctx context.Context, result EvaluationResult) (MessageRef, error)

	// FetchVotes returns a vote count per option position, with the
	// system's own marker excluded from each count. A poll nobody voted on
	// yields all zeros; a missing message yields ErrMessageNotFound.
	FetchVotes(ctx context.Context, ref MessageRef, optionCount int) ([]int, error)
}
