package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/habitforge/challenge-engine/pkg/clickhouse"
	"github.com/habitforge/challenge-engine/pkg/utils"
	"go.uber.org/zap"
)

const (
	ProofsTableName       = "challenge_proofs"
	RewardsTableName      = "challenge_rewards"
	ParticipantsTableName = "participants"
)

// Store is the ClickHouse-backed Ledger implementation.
type Store struct {
	Client clickhouse.Client
	Logger *zap.Logger
}

var _ Ledger = (*Store)(nil)

// NewStore connects to ClickHouse (CHALLENGE_DB, default "habitforge") and
// ensures the ledger tables exist.
func NewStore(ctx context.Context, logger *zap.Logger) (*Store, error) {
	dbName := utils.Env("CHALLENGE_DB", "habitforge")

	client, err := clickhouse.New(ctx, logger.With(zap.String("component", "ledger")), dbName)
	if err != nil {
		return nil, err
	}

	store := &Store{Client: client, Logger: client.Logger}
	if err := store.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitializeDB creates the database and ledger tables when missing.
func (s *Store) InitializeDB(ctx context.Context) error {
	if err := s.Client.CreateDbIfNotExists(ctx); err != nil {
		return fmt.Errorf("create ledger database: %w", err)
	}

	proofs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			participant_id String CODEC(ZSTD(1)),
			participant_name String CODEC(ZSTD(1)),
			challenge_id UInt32 CODEC(Delta, ZSTD(3)),
			week_start Date CODEC(DoubleDelta, LZ4),
			proof_date Date CODEC(DoubleDelta, LZ4),
			minimal_dose UInt8,
			created_at DateTime DEFAULT now() CODEC(DoubleDelta, LZ4)
		) ENGINE = %s
		ORDER BY (challenge_id, week_start, participant_id, proof_date)
		SETTINGS index_granularity = 8192
	`, s.Client.Database, ProofsTableName, clickhouse.MergeTree)

	// ReplacingMergeTree on reward_key makes CreateReward idempotent: a
	// re-run of the evaluation collapses into the original reward row.
	rewards := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			reward_key String CODEC(ZSTD(1)),
			participant_id String CODEC(ZSTD(1)),
			challenge_id UInt32 CODEC(Delta, ZSTD(3)),
			week_start Date CODEC(DoubleDelta, LZ4),
			amount Int32,
			created_at DateTime CODEC(DoubleDelta, LZ4)
		) ENGINE = %s(created_at)
		ORDER BY reward_key
		SETTINGS index_granularity = 8192
	`, s.Client.Database, RewardsTableName, clickhouse.ReplacingMergeTree)

	participants := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			participant_id String CODEC(ZSTD(1)),
			name String CODEC(ZSTD(1)),
			handle String CODEC(ZSTD(1)),
			updated_at DateTime DEFAULT now() CODEC(DoubleDelta, LZ4)
		) ENGINE = %s(updated_at)
		ORDER BY participant_id
		SETTINGS index_granularity = 8192
	`, s.Client.Database, ParticipantsTableName, clickhouse.ReplacingMergeTree)

	for _, query := range []string{proofs, rewards, participants} {
		if err := s.Client.Exec(ctx, query); err != nil {
			return fmt.Errorf("initialize ledger tables: %w", err)
		}
	}
	return nil
}

// ProofsForChallengeWeek returns all proofs for (challengeID, weekStart).
func (s *Store) ProofsForChallengeWeek(ctx context.Context, challengeID int, weekStart string) ([]ProofRecord, error) {
	start, err := utils.ParseDate(weekStart)
	if err != nil {
		return nil, fmt.Errorf("parse week start %q: %w", weekStart, err)
	}

	type rowInternal struct {
		ParticipantID   string    `ch:"participant_id"`
		ParticipantName string    `ch:"participant_name"`
		ChallengeID     uint32    `ch:"challenge_id"`
		WeekStart       time.Time `ch:"week_start"`
		ProofDate       time.Time `ch:"proof_date"`
		MinimalDose     uint8     `ch:"minimal_dose"`
	}

	query := fmt.Sprintf(`
		SELECT participant_id, participant_name, challenge_id, week_start, proof_date, minimal_dose
		FROM "%s"."%s"
		WHERE challenge_id = ? AND week_start = ?
		ORDER BY participant_id, proof_date
	`, s.Client.Database, ProofsTableName)

	var rows []rowInternal
	if err := s.Client.Select(ctx, &rows, query, uint32(challengeID), start); err != nil {
		return nil, fmt.Errorf("query proofs failed: %w", err)
	}

	// Convert to ProofRecord to decouple callers from ClickHouse tags.
	out := make([]ProofRecord, len(rows))
	for i, row := range rows {
		out[i] = ProofRecord{
			ParticipantID:   row.ParticipantID,
			ParticipantName: row.ParticipantName,
			ChallengeID:     int(row.ChallengeID),
			WeekStart:       utils.FormatDate(row.WeekStart),
			ProofDate:       utils.FormatDate(row.ProofDate),
			MinimalDose:     row.MinimalDose != 0,
		}
	}
	return out, nil
}

// RewardKey builds the deterministic dedup key for a completion.
func RewardKey(participantID string, challengeID int, weekStart string) string {
	return fmt.Sprintf("%s|%s|%d", participantID, weekStart, challengeID)
}

// CreateReward inserts a reward row keyed deterministically on
// (participant, week, challenge).
func (s *Store) CreateReward(ctx context.Context, participantID string, challengeID int, weekStart string, amount int) (RewardRecord, error) {
	start, err := utils.ParseDate(weekStart)
	if err != nil {
		return RewardRecord{}, fmt.Errorf("parse week start %q: %w", weekStart, err)
	}

	record := RewardRecord{
		Key:           RewardKey(participantID, challengeID, weekStart),
		ParticipantID: participantID,
		ChallengeID:   challengeID,
		WeekStart:     weekStart,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		reward_key, participant_id, challenge_id, week_start, amount, created_at
	) VALUES`, s.Client.Database, RewardsTableName)

	batch, err := s.Client.PrepareBatch(ctx, query)
	if err != nil {
		return RewardRecord{}, fmt.Errorf("prepare reward insert: %w", err)
	}
	defer func() { _ = batch.Close() }()

	if err := batch.Append(
		record.Key,
		record.ParticipantID,
		uint32(record.ChallengeID),
		start,
		int32(record.Amount),
		record.CreatedAt,
	); err != nil {
		_ = batch.Abort()
		return RewardRecord{}, fmt.Errorf("append reward row: %w", err)
	}

	if err := batch.Send(); err != nil {
		return RewardRecord{}, fmt.Errorf("insert reward: %w", err)
	}

	s.Logger.Debug("Reward created",
		zap.String("participantId", participantID),
		zap.String("weekStart", weekStart),
		zap.Int("amount", amount))
	return record, nil
}

// RecordProof persists one proof submission. The proof-intake side of the
// surrounding application writes through this path.
func (s *Store) RecordProof(ctx context.Context, proof ProofRecord) error {
	start, err := utils.ParseDate(proof.WeekStart)
	if err != nil {
		return fmt.Errorf("parse week start %q: %w", proof.WeekStart, err)
	}
	date, err := utils.ParseDate(proof.ProofDate)
	if err != nil {
		return fmt.Errorf("parse proof date %q: %w", proof.ProofDate, err)
	}

	minimal := uint8(0)
	if proof.MinimalDose {
		minimal = 1
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		participant_id, participant_name, challenge_id, week_start, proof_date, minimal_dose, created_at
	) VALUES`, s.Client.Database, ProofsTableName)

	batch, err := s.Client.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare proof insert: %w", err)
	}
	defer func() { _ = batch.Close() }()

	if err := batch.Append(
		proof.ParticipantID,
		proof.ParticipantName,
		uint32(proof.ChallengeID),
		start,
		date,
		minimal,
		time.Now().UTC(),
	); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append proof row: %w", err)
	}
	return batch.Send()
}

// UpsertParticipant registers or refreshes a participant identity.
func (s *Store) UpsertParticipant(ctx context.Context, identity ParticipantIdentity) error {
	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		participant_id, name, handle, updated_at
	) VALUES`, s.Client.Database, ParticipantsTableName)

	batch, err := s.Client.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare participant insert: %w", err)
	}
	defer func() { _ = batch.Close() }()

	if err := batch.Append(identity.ID, identity.Name, identity.Handle, time.Now().UTC()); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append participant row: %w", err)
	}
	return batch.Send()
}

// ResolveParticipant looks up display identity; (nil, nil) when unknown.
func (s *Store) ResolveParticipant(ctx context.Context, participantID string) (*ParticipantIdentity, error) {
	query := fmt.Sprintf(`
		SELECT participant_id, name, handle
		FROM "%s"."%s" FINAL
		WHERE participant_id = ?
		LIMIT 1
	`, s.Client.Database, ParticipantsTableName)

	var identity ParticipantIdentity
	err := s.Client.QueryRow(ctx, query, participantID).Scan(&identity.ID, &identity.Name, &identity.Handle)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve participant %s: %w", participantID, err)
	}
	return &identity, nil
}

// Health reports whether ClickHouse is reachable.
func (s *Store) Health(ctx context.Context) error {
	return s.Client.Health(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.Client.Close()
}
