package scheduler

import (
	"context"
	"fmt"

	"github.com/habitforge/challenge-engine/pkg/announce"
	"github.com/habitforge/challenge-engine/pkg/catalog"
	"github.com/habitforge/challenge-engine/pkg/rotation"
	"github.com/habitforge/challenge-engine/pkg/utils"
	"go.uber.org/zap"
)

// DeployChallenge resolves the winning challenge from the latest poll (or
// falls back to sequential rotation), starts the new week, and posts the
// announcement. Refuses to run twice for the same week.
func (a *App) DeployChallenge(ctx context.Context) error {
	today := a.Now()
	weekStart := utils.FormatDate(today)
	weekEnd := utils.FormatDate(today.AddDate(0, 0, 7))

	// A deploy only counts once its announcement landed; a run that died
	// between StartNewWeek and PostAnnouncement stays retryable.
	state := a.State.State()
	if state.Phase == rotation.PhaseDeployed && state.CurrentWeekStart == weekStart && state.ChallengeMessageID != "" {
		a.Logger.Warn("Challenge already deployed for this week, skipping",
			zap.String("weekStart", weekStart))
		return nil
	}

	nextIndex := a.resolveNextIndex(ctx, state.CurrentChallengeIndex)

	challenge := a.Catalog.ByIndex(nextIndex)
	if challenge == nil {
		return fmt.Errorf("challenge not found for index %d", nextIndex)
	}

	if err := a.State.StartNewWeek(ctx, weekStart, weekEnd, nextIndex); err != nil {
		return fmt.Errorf("start new week: %w", err)
	}

	ref, err := a.Channel.PostAnnouncement(ctx, *challenge, weekStart, weekEnd, a.RewardTerms)
	if err != nil {
		return fmt.Errorf("post announcement: %w", err)
	}
	if err := a.State.SetChallengeMessageRef(ctx, string(ref)); err != nil {
		return fmt.Errorf("persist announcement ref: %w", err)
	}

	a.Logger.Info("Challenge deployed",
		zap.Int("challengeId", challenge.ID),
		zap.String("challenge", challenge.Name),
		zap.String("weekStart", weekStart),
		zap.String("weekEnd", weekEnd))
	return nil
}

// resolveNextIndex picks the next challenge from poll votes when possible.
// Any degradation (no poll, missing message, fetch failure) falls back to
// the sequential rotation policy and logs a warning.
func (a *App) resolveNextIndex(ctx context.Context, currentIndex int) int {
	ref, ok := a.State.PollMessageRef()
	if !ok {
		next := a.Fallback(a.Catalog, currentIndex)
		a.Logger.Warn("No poll to read, using sequential rotation",
			zap.Int("nextIndex", next))
		return next
	}

	counts, err := a.Channel.FetchVotes(ctx, announce.MessageRef(ref), catalog.GroupSize)
	if err != nil {
		next := a.Fallback(a.Catalog, currentIndex)
		a.Logger.Warn("Failed to read poll votes, using sequential rotation",
			zap.String("ref", ref),
			zap.Int("nextIndex", next),
			zap.Error(err))
		return next
	}

	winningPosition := a.TieBreak(counts)

	// The pointer already rotated when the poll was posted, so the group
	// the poll was drawn from is one step back.
	groupCount := a.Catalog.GroupCount()
	resolvedGroup := (a.State.PollGroup() - 1 + groupCount) % groupCount
	next := resolvedGroup*catalog.GroupSize + winningPosition

	a.Logger.Info("Poll winner resolved",
		zap.Ints("votes", counts),
		zap.Int("winningOption", winningPosition),
		zap.Int("group", resolvedGroup),
		zap.Int("nextIndex", next))
	return next
}
