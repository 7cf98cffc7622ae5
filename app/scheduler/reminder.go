package scheduler

import (
	"context"
	"fmt"

	"github.com/habitforge/challenge-engine/pkg/announce"
	"github.com/habitforge/challenge-engine/pkg/utils"
	"go.uber.org/zap"
)

// SendMidWeekReminder posts a progress snapshot for the active week. Purely
// read-only with respect to the rotation state.
func (a *App) SendMidWeekReminder(ctx context.Context) error {
	weekStart, _ := a.State.CurrentWeek()
	if weekStart == "" {
		a.Logger.Info("No active challenge, skipping reminder")
		return nil
	}

	currentIndex := a.State.CurrentChallengeIndex()
	challenge := a.Catalog.ByIndex(currentIndex)
	if challenge == nil {
		return fmt.Errorf("challenge not found for index %d", currentIndex)
	}

	proofs, err := a.Ledger.ProofsForChallengeWeek(ctx, challenge.ID, weekStart)
	if err != nil {
		return fmt.Errorf("query proofs: %w", err)
	}

	proofsPerParticipant := make(map[string]int)
	for _, proof := range proofs {
		proofsPerParticipant[proof.ParticipantID]++
	}

	start, err := utils.ParseDate(weekStart)
	if err != nil {
		return fmt.Errorf("parse week start %q: %w", weekStart, err)
	}
	daysElapsed := utils.DaysBetween(start, a.Now())
	if daysElapsed < 0 {
		daysElapsed = 0
	}
	daysRemaining := 7 - daysElapsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	onTrack := 0
	for _, count := range proofsPerParticipant {
		// On track = at least one proof per elapsed day.
		if count >= daysElapsed {
			onTrack++
		}
	}

	stats := announce.ProgressStats{
		ChallengeName:    challenge.Name,
		DaysRequired:     challenge.DaysRequired,
		ParticipantCount: len(proofsPerParticipant),
		TotalProofs:      len(proofs),
		OnTrackCount:     onTrack,
		DaysElapsed:      daysElapsed,
		DaysRemaining:    daysRemaining,
	}
	if stats.ParticipantCount > 0 {
		stats.AvgProofs = float64(stats.TotalProofs) / float64(stats.ParticipantCount)
	}

	if _, err := a.Channel.PostProgressSummary(ctx, stats); err != nil {
		return fmt.Errorf("post progress summary: %w", err)
	}

	a.Logger.Info("Mid-week reminder sent",
		zap.Int("participants", stats.ParticipantCount),
		zap.Int("totalProofs", stats.TotalProofs),
		zap.Int("onTrack", stats.OnTrackCount))
	return nil
}
