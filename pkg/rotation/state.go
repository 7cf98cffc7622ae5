package rotation

import (
	"fmt"

	"github.com/habitforge/challenge-engine/pkg/utils"
)

// Phase is the explicit cycle phase stored alongside the rotation state, so
// jobs can assert preconditions instead of relying purely on wall-clock
// ordering.
type Phase string

const (
	PhaseNone      Phase = ""
	PhasePolling   Phase = "polling"
	PhaseDeployed  Phase = "deployed"
	PhaseEvaluated Phase = "evaluated"
)

// State is the single durable record describing where the weekly cycle is.
// The JSON shape matches the persisted layout consumed by operators.
type State struct {
	CurrentChallengeIndex int      `json:"currentChallengeIndex"`
	CurrentWeekStart      string   `json:"currentWeekStart"`
	CurrentWeekEnd        string   `json:"currentWeekEnd"`
	JoinedUserIDs         []string `json:"joinedUserIds"`
	ChallengeMessageID    string   `json:"challengeMessageId,omitempty"`
	PollMessageID         string   `json:"pollMessageId,omitempty"`
	PollChallengeGroup    int      `json:"pollChallengeGroup"`
	LastEvaluationDate    string   `json:"lastEvaluationDate,omitempty"`
	Phase                 Phase    `json:"phase,omitempty"`
	Version               int64    `json:"version"`
	LastUpdated           string   `json:"lastUpdated"`
}

// defaultState is the zero-value record synthesized on first run.
func defaultState() State {
	return State{
		CurrentChallengeIndex: 0,
		CurrentWeekStart:      "",
		CurrentWeekEnd:        "",
		JoinedUserIDs:         []string{},
		PollChallengeGroup:    0,
		Phase:                 PhaseNone,
	}
}

// Validate checks the shape of a state record against the configured group
// count. Used by Import before committing a replacement state.
func (s *State) Validate(groupCount int) error {
	if s.CurrentChallengeIndex < 0 {
		return fmt.Errorf("currentChallengeIndex %d is negative", s.CurrentChallengeIndex)
	}
	if s.PollChallengeGroup < 0 || s.PollChallengeGroup >= groupCount {
		return fmt.Errorf("pollChallengeGroup %d outside [0,%d)", s.PollChallengeGroup, groupCount)
	}
	if s.JoinedUserIDs == nil {
		return fmt.Errorf("joinedUserIds is missing")
	}
	if s.CurrentWeekStart != "" {
		if _, err := utils.ParseDate(s.CurrentWeekStart); err != nil {
			return fmt.Errorf("currentWeekStart: %w", err)
		}
	}
	if s.CurrentWeekEnd != "" {
		if _, err := utils.ParseDate(s.CurrentWeekEnd); err != nil {
			return fmt.Errorf("currentWeekEnd: %w", err)
		}
	}
	switch s.Phase {
	case PhaseNone, PhasePolling, PhaseDeployed, PhaseEvaluated:
	default:
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	return nil
}
