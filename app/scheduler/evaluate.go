package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/habitforge/challenge-engine/pkg/announce"
	"github.com/habitforge/challenge-engine/pkg/ledger"
	"github.com/habitforge/challenge-engine/pkg/utils"
)

// identityResolvers bounds the concurrent participant lookups during an
// evaluation run.
const identityResolvers = 4

// RunWeeklyEvaluation computes completion and ranking for the outgoing week,
// issues one fixed reward per completed participant, posts the results, and
// records the evaluation timestamp. All ledger reads happen before any
// reward writes.
func (a *App) RunWeeklyEvaluation(ctx context.Context) error {
	weekStart, weekEnd := a.State.CurrentWeek()
	if weekStart == "" || weekEnd == "" {
		a.Logger.Info("No active challenge to evaluate")
		return nil
	}

	// Re-running an evaluation for a week that already has one would
	// re-post results; refuse once the recorded timestamp reaches the
	// week's end. Reward writes are additionally deduplicated by the
	// ledger's deterministic reward key.
	if last, ok := a.State.LastEvaluation(); ok {
		if end, err := utils.ParseDate(weekEnd); err == nil && !last.Before(end) {
			a.Logger.Warn("Week already evaluated, skipping",
				zap.String("weekStart", weekStart),
				zap.Time("lastEvaluation", last))
			return nil
		}
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

	proofsByParticipant := make(map[string][]ledger.ProofRecord)
	for _, proof := range proofs {
		proofsByParticipant[proof.ParticipantID] = append(proofsByParticipant[proof.ParticipantID], proof)
	}

	identities, err := a.resolveIdentities(ctx, proofsByParticipant)
	if err != nil {
		return fmt.Errorf("resolve participants: %w", err)
	}

	participants := make([]announce.ParticipantProgress, 0, len(proofsByParticipant))
	for participantID, records := range proofsByParticipant {
		identity, ok := identities.Load(participantID)
		if !ok || identity == nil {
			a.Logger.Warn("Skipping unknown participant",
				zap.String("participantId", participantID))
			continue
		}

		progress := announce.ParticipantProgress{
			ParticipantID:   participantID,
			Name:            identity.Name,
			ProofsSubmitted: len(records),
			DaysRequired:    challenge.DaysRequired,
			Completed:       len(records) >= challenge.DaysRequired,
		}
		for _, record := range records {
			progress.ProofDates = append(progress.ProofDates, record.ProofDate)
			if record.MinimalDose {
				progress.MinimalDoseCount++
			} else {
				progress.FullProofCount++
			}
		}

		participants = append(participants, progress)
	}

	// Rank by proofs submitted; participant ID breaks ties so map
	// iteration order never leaks into the output.
	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].ProofsSubmitted != participants[j].ProofsSubmitted {
			return participants[i].ProofsSubmitted > participants[j].ProofsSubmitted
		}
		return participants[i].ParticipantID < participants[j].ParticipantID
	})

	winners := make([]announce.ParticipantProgress, 0, len(participants))
	for _, p := range participants {
		if p.Completed {
			winners = append(winners, p)
		}
	}

	// Reads are done; reward writes cover every completed participant,
	// independent of any display truncation.
	for _, winner := range winners {
		if _, err := a.Ledger.CreateReward(ctx, winner.ParticipantID, challenge.ID, weekStart, a.RewardAmount); err != nil {
			return fmt.Errorf("create reward for %s: %w", winner.ParticipantID, err)
		}
	}

	now := a.Now()
	result := announce.EvaluationResult{
		ChallengeID:         challenge.ID,
		ChallengeName:       challenge.Name,
		WeekStart:           weekStart,
		WeekEnd:             weekEnd,
		TotalParticipants:   len(participants),
		Winners:             winners,
		Participants:        participants,
		TotalRewardsAwarded: len(winners),
		EvaluatedAt:         now,
	}

	if _, err := a.Channel.PostResults(ctx, result); err != nil {
		return fmt.Errorf("post results: %w", err)
	}

	if err := a.State.RecordEvaluation(ctx, now); err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}

	a.Logger.Info("Evaluation complete",
		zap.Int("participants", len(participants)),
		zap.Int("winners", len(winners)),
		zap.Int("rewardsAwarded", result.TotalRewardsAwarded))
	return nil
}

// resolveIdentities looks up display identities with a bounded worker pool.
func (a *App) resolveIdentities(ctx context.Context, proofsByParticipant map[string][]ledger.ProofRecord) (*xsync.Map[string, *ledger.ParticipantIdentity], error) {
	identities := xsync.NewMap[string, *ledger.ParticipantIdentity]()

	pool := pond.NewPool(identityResolvers)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for participantID := range proofsByParticipant {
		participantID := participantID
		group.SubmitErr(func() error {
			identity, err := a.Ledger.ResolveParticipant(ctx, participantID)
			if err != nil {
				return err
			}
			identities.Store(participantID, identity)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return identities, nil
}
