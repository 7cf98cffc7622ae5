package rotation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testGroupCount = 4

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewStore(context.Background(), zaptest.NewLogger(t), NewFileBackend(path), testGroupCount)
	require.NoError(t, err)
	return s, path
}

func readStateFile(t *testing.T, path string) State {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out State
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNewStoreSynthesizesDefault(t *testing.T) {
	s, path := newTestStore(t)

	state := s.State()
	assert.Equal(t, 0, state.CurrentChallengeIndex)
	assert.Empty(t, state.CurrentWeekStart)
	assert.Empty(t, state.JoinedUserIDs)
	assert.Equal(t, 0, state.PollChallengeGroup)
	assert.Equal(t, PhaseNone, state.Phase)

	// The default is persisted immediately, not only held in memory.
	persisted := readStateFile(t, path)
	assert.Equal(t, int64(1), persisted.Version)
}

func TestNewStoreRejectsZeroGroupCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	_, err := NewStore(context.Background(), zaptest.NewLogger(t), NewFileBackend(path), 0)
	assert.Error(t, err)
}

func TestNewStoreLoadsExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	logger := zaptest.NewLogger(t)

	first, err := NewStore(ctx, logger, NewFileBackend(path), testGroupCount)
	require.NoError(t, err)
	require.NoError(t, first.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 7))
	require.NoError(t, first.AddParticipant(ctx, "user-1"))

	second, err := NewStore(ctx, logger, NewFileBackend(path), testGroupCount)
	require.NoError(t, err)

	state := second.State()
	assert.Equal(t, 7, state.CurrentChallengeIndex)
	assert.Equal(t, "2026-08-23", state.CurrentWeekStart)
	assert.Equal(t, []string{"user-1"}, state.JoinedUserIDs)
	assert.Equal(t, PhaseDeployed, state.Phase)
}

func TestNewStoreResetsMalformedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewStore(context.Background(), zaptest.NewLogger(t), NewFileBackend(path), testGroupCount)
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentChallengeIndex())
	assert.Equal(t, PhaseNone, s.Phase())
}

func TestStartNewWeekResetsMembership(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.StartNewWeek(ctx, "2026-08-16", "2026-08-23", 3))
	require.NoError(t, s.AddParticipant(ctx, "user-1"))
	require.NoError(t, s.AddParticipant(ctx, "user-2"))
	require.NoError(t, s.SetChallengeMessageRef(ctx, "msg-1"))
	require.NoError(t, s.SetPollMessageRef(ctx, "poll-1"))
	require.Equal(t, 2, s.ParticipantCount())

	require.NoError(t, s.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 4))

	state := s.State()
	assert.Equal(t, 4, state.CurrentChallengeIndex)
	assert.Empty(t, state.JoinedUserIDs)
	assert.Empty(t, state.ChallengeMessageID)
	assert.Equal(t, PhaseDeployed, state.Phase)

	// The poll reference survives the deploy; it is resolved before the
	// deploy happens and overwritten by the next poll.
	ref, ok := s.PollMessageRef()
	assert.True(t, ok)
	assert.Equal(t, "poll-1", ref)
}

func TestAddParticipantIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.AddParticipant(ctx, "user-1"))
	versionAfterFirst := s.State().Version

	require.NoError(t, s.AddParticipant(ctx, "user-1"))
	state := s.State()
	assert.Equal(t, []string{"user-1"}, state.JoinedUserIDs)
	// Duplicate joins do not even write.
	assert.Equal(t, versionAfterFirst, state.Version)

	assert.True(t, s.HasParticipant("user-1"))
	assert.False(t, s.HasParticipant("user-2"))
}

func TestRotatePollGroupFullCycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	seen := []int{s.PollGroup()}
	for i := 0; i < testGroupCount; i++ {
		require.NoError(t, s.RotatePollGroup(ctx))
		seen = append(seen, s.PollGroup())
	}
	assert.Equal(t, []int{0, 1, 2, 3, 0}, seen)
}

func TestSetPollMessageRefMarksPolling(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok := s.PollMessageRef()
	assert.False(t, ok)

	require.NoError(t, s.SetPollMessageRef(ctx, "poll-42"))
	ref, ok := s.PollMessageRef()
	assert.True(t, ok)
	assert.Equal(t, "poll-42", ref)
	assert.Equal(t, PhasePolling, s.Phase())
}

func TestRecordEvaluation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok := s.LastEvaluation()
	assert.False(t, ok)

	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordEvaluation(ctx, ts))

	got, ok := s.LastEvaluation()
	require.True(t, ok)
	assert.True(t, got.Equal(ts))
	assert.Equal(t, PhaseEvaluated, s.Phase())
}

func TestVersionMonotonicity(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	last := s.State().Version
	mutations := []func() error{
		func() error { return s.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 2) },
		func() error { return s.AddParticipant(ctx, "user-1") },
		func() error { return s.SetPollMessageRef(ctx, "poll-1") },
		func() error { return s.RotatePollGroup(ctx) },
		func() error { return s.RecordEvaluation(ctx, time.Now()) },
	}
	for _, mutate := range mutations {
		require.NoError(t, mutate())
		current := s.State().Version
		assert.Equal(t, last+1, current)
		last = current
	}
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.AddParticipant(ctx, "user-1"))

	state := s.State()
	state.JoinedUserIDs[0] = "mutated"
	assert.True(t, s.HasParticipant("user-1"))
	assert.False(t, s.HasParticipant("mutated"))
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 9))
	require.NoError(t, s.AddParticipant(ctx, "user-1"))

	doc, err := s.Export()
	require.NoError(t, err)

	other, _ := newTestStore(t)
	require.NoError(t, other.Import(ctx, doc))

	state := other.State()
	assert.Equal(t, 9, state.CurrentChallengeIndex)
	assert.Equal(t, "2026-08-23", state.CurrentWeekStart)
	assert.Equal(t, []string{"user-1"}, state.JoinedUserIDs)
}

func TestImportRejectsInvalidState(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.StartNewWeek(ctx, "2026-08-23", "2026-08-30", 5))

	cases := map[string]string{
		"not json":            `{broken`,
		"negative index":      `{"currentChallengeIndex":-1,"joinedUserIds":[],"pollChallengeGroup":0}`,
		"group out of range":  `{"currentChallengeIndex":0,"joinedUserIds":[],"pollChallengeGroup":9}`,
		"missing member list": `{"currentChallengeIndex":0,"pollChallengeGroup":0}`,
		"bad week start":      `{"currentChallengeIndex":0,"joinedUserIds":[],"pollChallengeGroup":0,"currentWeekStart":"yesterday"}`,
		"unknown phase":       `{"currentChallengeIndex":0,"joinedUserIds":[],"pollChallengeGroup":0,"phase":"limbo"}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			err := s.Import(ctx, doc)
			assert.Error(t, err)
			// The prior state survives a rejected import.
			assert.Equal(t, 5, s.CurrentChallengeIndex())
			assert.Equal(t, PhaseDeployed, s.Phase())
		})
	}
}

func TestFileBackendNotFound(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "missing.json"))
	_, err := b.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStateJSONFieldNames(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.StartNewWeek(context.Background(), "2026-08-23", "2026-08-30", 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"currentChallengeIndex", "currentWeekStart", "currentWeekEnd",
		"joinedUserIds", "pollChallengeGroup", "phase", "version", "lastUpdated",
	} {
		assert.Contains(t, raw, key)
	}
}
