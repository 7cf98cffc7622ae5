package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitforge/challenge-engine/pkg/announce"
	"github.com/habitforge/challenge-engine/pkg/catalog"
	"github.com/habitforge/challenge-engine/pkg/ledger"
	"github.com/habitforge/challenge-engine/pkg/rotation"
)

// fakeChannel is an in-memory announce.Channel recording every post.
type fakeChannel struct {
	mu      sync.Mutex
	nextRef int

	polls         [][]announce.PollOption
	announcements []catalog.Challenge
	summaries     []announce.ProgressStats
	results       []announce.EvaluationResult

	votes       []int
	votesErr    error
	pollErr     error
	announceErr error
}

func (c *fakeChannel) ref() announce.MessageRef {
	c.nextRef++
	return announce.MessageRef(fmt.Sprintf("msg-%d", c.nextRef))
}

func (c *fakeChannel) PostPoll(_ context.Context, options []announce.PollOption) (announce.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollErr != nil {
		return "", c.pollErr
	}
	c.polls = append(c.polls, options)
	return c.ref(), nil
}

func (c *fakeChannel) PostAnnouncement(_ context.Context, challenge catalog.Challenge, _, _, _ string) (announce.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.announceErr != nil {
		return "", c.announceErr
	}
	c.announcements = append(c.announcements, challenge)
	return c.ref(), nil
}

func (c *fakeChannel) PostProgressSummary(_ context.Context, stats announce.ProgressStats) (announce.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, stats)
	return c.ref(), nil
}

func (c *fakeChannel) PostResults(_ context.Context, result announce.EvaluationResult) (announce.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
	return c.ref(), nil
}

func (c *fakeChannel) FetchVotes(_ context.Context, _ announce.MessageRef, optionCount int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.votesErr != nil {
		return nil, c.votesErr
	}
	if c.votes == nil {
		return make([]int, optionCount), nil
	}
	return c.votes, nil
}

// fakeLedger is an in-memory ledger.Ledger. When identities is nil every
// participant resolves to a synthesized identity; otherwise missing entries
// resolve to (nil, nil) like the real store.
type fakeLedger struct {
	mu         sync.Mutex
	proofs     []ledger.ProofRecord
	proofsErr  error
	rewards    []ledger.RewardRecord
	identities map[string]*ledger.ParticipantIdentity
	healthErr  error
}

func (l *fakeLedger) Health(context.Context) error {
	return l.healthErr
}

func (l *fakeLedger) ProofsForChallengeWeek(_ context.Context, challengeID int, weekStart string) ([]ledger.ProofRecord, error) {
	if l.proofsErr != nil {
		return nil, l.proofsErr
	}
	var out []ledger.ProofRecord
	for _, p := range l.proofs {
		if p.ChallengeID == challengeID && p.WeekStart == weekStart {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *fakeLedger) CreateReward(_ context.Context, participantID string, challengeID int, weekStart string, amount int) (ledger.RewardRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := ledger.RewardRecord{
		Key:           fmt.Sprintf("%s|%s|%d", participantID, weekStart, challengeID),
		ParticipantID: participantID,
		ChallengeID:   challengeID,
		WeekStart:     weekStart,
		Amount:        amount,
		CreatedAt:     time.Now(),
	}
	l.rewards = append(l.rewards, r)
	return r, nil
}

func (l *fakeLedger) ResolveParticipant(_ context.Context, participantID string) (*ledger.ParticipantIdentity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.identities == nil {
		return &ledger.ParticipantIdentity{ID: participantID, Name: "Name " + participantID}, nil
	}
	return l.identities[participantID], nil
}

func newTestApp(t *testing.T, now time.Time) (*App, *fakeChannel, *fakeLedger) {
	t.Helper()
	ctx := context.Background()
	cat := catalog.Default()

	backend := rotation.NewFileBackend(filepath.Join(t.TempDir(), "state.json"))
	state, err := rotation.NewStore(ctx, zaptest.NewLogger(t), backend, cat.GroupCount())
	require.NoError(t, err)

	channel := &fakeChannel{}
	led := &fakeLedger{}

	return &App{
		Logger:       zaptest.NewLogger(t),
		Catalog:      cat,
		State:        state,
		Ledger:       led,
		Channel:      channel,
		Now:          func() time.Time { return now },
		RewardAmount: 1,
		RewardTerms:  "1 credit for completing the challenge!",
		JobTimeout:   time.Minute,
		TieBreak:     FirstOptionWins,
		Fallback:     SequentialRotation,
		rootCtx:      ctx,
		locks:        xsync.NewMap[string, *sync.Mutex](),
		lastRuns:     xsync.NewMap[string, JobStatus](),
	}, channel, led
}

var sundayDeploy = time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

func TestSendChallengePoll(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	ctx := context.Background()

	require.NoError(t, app.SendChallengePoll(ctx))

	require.Len(t, channel.polls, 1)
	options := channel.polls[0]
	require.Len(t, options, catalog.GroupSize)
	assert.Equal(t, "Daily Mobility Stretching", options[0].Name)
	assert.Equal(t, 0, options[0].Position)

	ref, ok := app.State.PollMessageRef()
	assert.True(t, ok)
	assert.Equal(t, "msg-1", ref)

	// Pointer advances only after the poll posted.
	assert.Equal(t, 1, app.State.PollGroup())
	assert.Equal(t, rotation.PhasePolling, app.State.Phase())
}

func TestSendChallengePollPostFailureKeepsGroup(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	channel.pollErr = errors.New("channel down")

	err := app.SendChallengePoll(context.Background())
	require.Error(t, err)

	// Next run retries the same group.
	assert.Equal(t, 0, app.State.PollGroup())
	_, ok := app.State.PollMessageRef()
	assert.False(t, ok)
}

func TestDeployUsesWinningVote(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	ctx := context.Background()

	// Poll was drawn from group 2; the pointer has already rotated to 3.
	for i := 0; i < 3; i++ {
		require.NoError(t, app.State.RotatePollGroup(ctx))
	}
	require.NoError(t, app.State.SetPollMessageRef(ctx, "poll-1"))
	require.NoError(t, app.State.AddParticipant(ctx, "leftover-user"))

	// Tie between options 1 and 2; the earlier position wins.
	channel.votes = []int{2, 3, 3, 1, 0}

	require.NoError(t, app.DeployChallenge(ctx))

	// Group 2, option 1 -> catalog index 11 (challenge ID 12).
	state := app.State.State()
	assert.Equal(t, 11, state.CurrentChallengeIndex)
	assert.Equal(t, "2026-08-30", state.CurrentWeekStart)
	assert.Equal(t, "2026-09-06", state.CurrentWeekEnd)
	assert.Equal(t, rotation.PhaseDeployed, state.Phase)
	assert.Empty(t, state.JoinedUserIDs)

	require.Len(t, channel.announcements, 1)
	assert.Equal(t, 12, channel.announcements[0].ID)

	ref, ok := app.State.ChallengeMessageRef()
	assert.True(t, ok)
	assert.NotEmpty(t, ref)
}

func TestDeployFallsBackWithoutPoll(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	ctx := context.Background()

	require.NoError(t, app.DeployChallenge(ctx))

	// No poll ever posted: sequential rotation from index 0.
	assert.Equal(t, 1, app.State.CurrentChallengeIndex())
	require.Len(t, channel.announcements, 1)
	assert.Equal(t, 2, channel.announcements[0].ID)
}

func TestDeployFallsBackOnVoteFetchFailure(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	ctx := context.Background()

	require.NoError(t, app.State.SetPollMessageRef(ctx, "poll-gone"))
	channel.votesErr = announce.ErrMessageNotFound

	require.NoError(t, app.DeployChallenge(ctx))

	// Degraded but deployed: the announcement still goes out.
	assert.Equal(t, 1, app.State.CurrentChallengeIndex())
	require.Len(t, channel.announcements, 1)
}

func TestDeployRefusesSameWeek(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	ctx := context.Background()

	require.NoError(t, app.DeployChallenge(ctx))
	require.NoError(t, app.DeployChallenge(ctx))

	assert.Len(t, channel.announcements, 1)
}

func TestDeployRetryableAfterAnnouncementFailure(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	ctx := context.Background()

	channel.announceErr = errors.New("channel down")
	require.Error(t, app.DeployChallenge(ctx))
	_, ok := app.State.ChallengeMessageRef()
	require.False(t, ok)

	// The failed run must not burn the week; a manual retry completes it.
	channel.announceErr = nil
	require.NoError(t, app.DeployChallenge(ctx))

	require.Len(t, channel.announcements, 1)
	ref, ok := app.State.ChallengeMessageRef()
	assert.True(t, ok)
	assert.NotEmpty(t, ref)

	// Once the announcement landed, the same-week refusal applies again.
	require.NoError(t, app.DeployChallenge(ctx))
	assert.Len(t, channel.announcements, 1)
}

func TestSendMidWeekReminder(t *testing.T) {
	// Wednesday noon, three days into the week.
	app, channel, led := newTestApp(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	// Index 2 is "Eat the Frog First" (ID 3, 5 days required).
	require.NoError(t, app.State.StartNewWeek(ctx, "2026-08-30", "2026-09-06", 2))

	led.proofs = []ledger.ProofRecord{
		{ParticipantID: "alice", ChallengeID: 3, WeekStart: "2026-08-30", ProofDate: "2026-08-30"},
		{ParticipantID: "alice", ChallengeID: 3, WeekStart: "2026-08-30", ProofDate: "2026-08-31"},
		{ParticipantID: "alice", ChallengeID: 3, WeekStart: "2026-08-30", ProofDate: "2026-09-01"},
		{ParticipantID: "bob", ChallengeID: 3, WeekStart: "2026-08-30", ProofDate: "2026-08-30"},
		{ParticipantID: "bob", ChallengeID: 3, WeekStart: "2026-08-30", ProofDate: "2026-08-31"},
		{ParticipantID: "carol", ChallengeID: 3, WeekStart: "2026-08-30", ProofDate: "2026-08-30"},
		// A different challenge's proof never leaks into this week.
		{ParticipantID: "dave", ChallengeID: 4, WeekStart: "2026-08-30", ProofDate: "2026-08-30"},
	}

	require.NoError(t, app.SendMidWeekReminder(ctx))

	require.Len(t, channel.summaries, 1)
	stats := channel.summaries[0]
	assert.Equal(t, "Eat the Frog First", stats.ChallengeName)
	assert.Equal(t, 3, stats.ParticipantCount)
	assert.Equal(t, 6, stats.TotalProofs)
	assert.Equal(t, 1, stats.OnTrackCount) // only alice has one proof per elapsed day
	assert.Equal(t, 3, stats.DaysElapsed)
	assert.Equal(t, 4, stats.DaysRemaining)
	assert.InDelta(t, 2.0, stats.AvgProofs, 0.001)

	// Reminder never mutates the cycle.
	assert.Equal(t, rotation.PhaseDeployed, app.State.Phase())
}

func TestSendMidWeekReminderStaleWeekClampsDaysRemaining(t *testing.T) {
	// Ten days after the week started: the deploy slot was missed and the
	// reminder fires against a week that already ended.
	app, channel, _ := newTestApp(t, time.Date(2026, 9, 9, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, app.State.StartNewWeek(ctx, "2026-08-30", "2026-09-06", 2))
	require.NoError(t, app.SendMidWeekReminder(ctx))

	require.Len(t, channel.summaries, 1)
	stats := channel.summaries[0]
	assert.Equal(t, 10, stats.DaysElapsed)
	assert.Equal(t, 0, stats.DaysRemaining)
}

func TestSendMidWeekReminderSkipsWithoutWeek(t *testing.T) {
	app, channel, _ := newTestApp(t, sundayDeploy)
	require.NoError(t, app.SendMidWeekReminder(context.Background()))
	assert.Empty(t, channel.summaries)
}

func TestRunWeeklyEvaluation(t *testing.T) {
	// Sunday 09:00, end of the week that started 2026-08-23.
	app, channel, led := newTestApp(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	// Index 2 is "Eat the Frog First" (ID 3, 5 days required).
	require.NoError(t, app.State.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 2))

	addProofs := func(id string, n int, minimal int) {
		for i := 0; i < n; i++ {
			led.proofs = append(led.proofs, ledger.ProofRecord{
				ParticipantID: id,
				ChallengeID:   3,
				WeekStart:     "2026-08-23",
				ProofDate:     fmt.Sprintf("2026-08-%02d", 23+i),
				MinimalDose:   i < minimal,
			})
		}
	}
	addProofs("alice", 5, 1)
	addProofs("bob", 4, 0)
	addProofs("carol", 6, 0)

	require.NoError(t, app.RunWeeklyEvaluation(ctx))

	require.Len(t, channel.results, 1)
	result := channel.results[0]
	assert.Equal(t, 3, result.ChallengeID)
	assert.Equal(t, 3, result.TotalParticipants)

	// Ranked by proofs submitted, descending.
	require.Len(t, result.Participants, 3)
	assert.Equal(t, "carol", result.Participants[0].ParticipantID)
	assert.Equal(t, "alice", result.Participants[1].ParticipantID)
	assert.Equal(t, "bob", result.Participants[2].ParticipantID)

	// Completion needs daysRequired proofs; bob at 4/5 misses it.
	require.Len(t, result.Winners, 2)
	assert.Equal(t, 2, result.TotalRewardsAwarded)
	assert.Equal(t, 4, result.Participants[1].FullProofCount)
	assert.Equal(t, 1, result.Participants[1].MinimalDoseCount)

	require.Len(t, led.rewards, 2)
	for _, r := range led.rewards {
		assert.Equal(t, 1, r.Amount)
		assert.Equal(t, 3, r.ChallengeID)
		assert.Equal(t, "2026-08-23", r.WeekStart)
	}

	assert.Equal(t, rotation.PhaseEvaluated, app.State.Phase())
	last, ok := app.State.LastEvaluation()
	require.True(t, ok)
	assert.False(t, last.Before(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)))
}

func TestRunWeeklyEvaluationRefusesRerun(t *testing.T) {
	app, channel, led := newTestApp(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, app.State.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 2))
	led.proofs = []ledger.ProofRecord{
		{ParticipantID: "alice", ChallengeID: 3, WeekStart: "2026-08-23", ProofDate: "2026-08-23"},
	}

	require.NoError(t, app.RunWeeklyEvaluation(ctx))
	require.NoError(t, app.RunWeeklyEvaluation(ctx))

	assert.Len(t, channel.results, 1)
}

func TestRunWeeklyEvaluationTieBrokenByID(t *testing.T) {
	app, channel, led := newTestApp(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, app.State.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 2))
	for _, id := range []string{"zed", "amy"} {
		for i := 0; i < 5; i++ {
			led.proofs = append(led.proofs, ledger.ProofRecord{
				ParticipantID: id, ChallengeID: 3, WeekStart: "2026-08-23",
				ProofDate: fmt.Sprintf("2026-08-%02d", 23+i),
			})
		}
	}

	require.NoError(t, app.RunWeeklyEvaluation(ctx))

	require.Len(t, channel.results, 1)
	participants := channel.results[0].Participants
	require.Len(t, participants, 2)
	assert.Equal(t, "amy", participants[0].ParticipantID)
	assert.Equal(t, "zed", participants[1].ParticipantID)
}

func TestRunWeeklyEvaluationSkipsUnknownParticipants(t *testing.T) {
	app, channel, led := newTestApp(t, time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, app.State.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 2))
	led.identities = map[string]*ledger.ParticipantIdentity{
		"alice": {ID: "alice", Name: "Alice"},
	}
	for _, id := range []string{"alice", "ghost"} {
		for i := 0; i < 5; i++ {
			led.proofs = append(led.proofs, ledger.ProofRecord{
				ParticipantID: id, ChallengeID: 3, WeekStart: "2026-08-23",
				ProofDate: fmt.Sprintf("2026-08-%02d", 23+i),
			})
		}
	}

	require.NoError(t, app.RunWeeklyEvaluation(ctx))

	require.Len(t, channel.results, 1)
	result := channel.results[0]
	require.Len(t, result.Participants, 1)
	assert.Equal(t, "Alice", result.Participants[0].Name)
	assert.Len(t, led.rewards, 1)
}

func TestRunWeeklyEvaluationSkipsWithoutWeek(t *testing.T) {
	app, channel, led := newTestApp(t, sundayDeploy)
	require.NoError(t, app.RunWeeklyEvaluation(context.Background()))
	assert.Empty(t, channel.results)
	assert.Empty(t, led.rewards)
}

func TestFirstOptionWins(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   int
	}{
		{"clear winner", []int{0, 4, 1, 2, 0}, 1},
		{"tie resolves to earlier position", []int{2, 3, 3, 1, 0}, 1},
		{"all zeros picks first", []int{0, 0, 0, 0, 0}, 0},
		{"last option wins", []int{1, 1, 1, 1, 5}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstOptionWins(tt.counts))
		})
	}
}

func TestSequentialRotationWraps(t *testing.T) {
	cat := catalog.Default()
	assert.Equal(t, 1, SequentialRotation(cat, 0))
	assert.Equal(t, 0, SequentialRotation(cat, cat.Len()-1))
}

func TestReadyRequiresHealthyLedger(t *testing.T) {
	app, _, led := newTestApp(t, sundayDeploy)

	assert.True(t, app.Ready())

	led.healthErr = errors.New("clickhouse unreachable")
	assert.False(t, app.Ready())
}

func TestRunJobRecordsStatus(t *testing.T) {
	app, _, _ := newTestApp(t, sundayDeploy)

	app.runJob(context.Background(), "job", func(context.Context) error { return nil })
	status, ok := app.lastRuns.Load("job")
	require.True(t, ok)
	assert.Empty(t, status.Error)

	app.runJob(context.Background(), "job", func(context.Context) error { return errors.New("boom") })
	status, ok = app.lastRuns.Load("job")
	require.True(t, ok)
	assert.Equal(t, "boom", status.Error)
}

func TestRunJobRejectsConcurrentInvocation(t *testing.T) {
	app, _, _ := newTestApp(t, sundayDeploy)

	lock := &sync.Mutex{}
	lock.Lock()
	defer lock.Unlock()
	app.locks.Store("job", lock)

	ran := false
	app.runJob(context.Background(), "job", func(context.Context) error {
		ran = true
		return nil
	})
	assert.False(t, ran)
	_, ok := app.lastRuns.Load("job")
	assert.False(t, ok)
}
