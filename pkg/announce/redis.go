package announce

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/habitforge/challenge-engine/pkg/catalog"
	redisw "github.com/habitforge/challenge-engine/pkg/redis"
	"github.com/habitforge/challenge-engine/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// voteTTL keeps vote hashes around long enough for a deploy plus manual
// inspection, then lets Redis reclaim them.
const voteTTL = 14 * 24 * time.Hour

// RedisChannel posts rendered messages to a Redis stream and keeps
// per-message vote hashes. Stream entry IDs double as message references.
// Each post also fans out a best-effort pub/sub notification for any
// delivery frontends (chat bridge, dashboard feed) that relay the stream.
type RedisChannel struct {
	client *redisw.Client
	logger *zap.Logger
	stream string
	notify string
}

var _ Channel = (*RedisChannel)(nil)

// NewRedisChannel builds the channel from environment configuration:
//   - CHALLENGE_FEED_STREAM: stream key (default "challenge:feed")
//   - CHALLENGE_NOTIFY_CHANNEL: pub/sub channel (default "challenge:events")
func NewRedisChannel(client *redisw.Client, logger *zap.Logger) *RedisChannel {
	return &RedisChannel{
		client: client,
		logger: logger,
		stream: utils.Env("CHALLENGE_FEED_STREAM", "challenge:feed"),
		notify: utils.Env("CHALLENGE_NOTIFY_CHANNEL", "challenge:events"),
	}
}

func (c *RedisChannel) post(ctx context.Context, kind, body string) (MessageRef, error) {
	id, err := c.client.GetClient().XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]interface{}{
			"kind":      kind,
			"body":      body,
			"posted_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("post %s message: %w", kind, err)
	}

	c.client.Publish(ctx, c.notify, kind)
	c.logger.Debug("Posted message",
		zap.String("kind", kind),
		zap.String("ref", id))
	return MessageRef(id), nil
}

// PostPoll posts the poll message and seeds one marker per option, the
// system's own marker that FetchVotes later excludes.
func (c *RedisChannel) PostPoll(ctx context.Context, options []PollOption) (MessageRef, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("post poll: no options")
	}

	ref, err := c.post(ctx, "poll", RenderPoll(options))
	if err != nil {
		return "", err
	}

	key := c.votesKey(ref)
	rdb := c.client.GetClient()
	if err := rdb.HSet(ctx, key, seedFields(options)).Err(); err != nil {
		// Remove the orphaned poll message so a retried job does not leave
		// a duplicate poll in the feed.
		if delErr := rdb.XDel(ctx, c.stream, string(ref)).Err(); delErr != nil {
			c.logger.Warn("Failed to remove orphaned poll message",
				zap.String("ref", string(ref)),
				zap.Error(delErr))
		}
		return "", fmt.Errorf("seed poll markers: %w", err)
	}
	if err := rdb.Expire(ctx, key, voteTTL).Err(); err != nil {
		c.logger.Warn("Failed to set vote hash TTL", zap.Error(err))
	}

	return ref, nil
}

// seedFields builds the vote hash's initial contents: one marker per option,
// written in a single HSET.
func seedFields(options []PollOption) map[string]interface{} {
	fields := make(map[string]interface{}, len(options))
	for _, opt := range options {
		fields[strconv.Itoa(opt.Position)] = 1
	}
	return fields
}

// PostAnnouncement posts the deployed-challenge message.
func (c *RedisChannel) PostAnnouncement(ctx context.Context, challenge catalog.Challenge, weekStart, weekEnd, rewardTerms string) (MessageRef, error) {
	return c.post(ctx, "announcement", RenderAnnouncement(challenge, weekStart, weekEnd, rewardTerms))
}

// PostProgressSummary posts the mid-week reminder.
func (c *RedisChannel) PostProgressSummary(ctx context.Context, stats ProgressStats) (MessageRef, error) {
	return c.post(ctx, "progress", RenderProgressSummary(stats))
}

// PostResults posts the evaluation outcome.
func (c *RedisChannel) PostResults(ctx context.Context, result EvaluationResult) (MessageRef, error) {
	return c.post(ctx, "results", RenderResults(result))
}

// FetchVotes returns per-option counts with the seed marker subtracted. A
// poll with no votes yields all zeros; a missing message yields
// ErrMessageNotFound.
func (c *RedisChannel) FetchVotes(ctx context.Context, ref MessageRef, optionCount int) ([]int, error) {
	rdb := c.client.GetClient()

	fields, err := rdb.HGetAll(ctx, c.votesKey(ref)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch votes for %s: %w", ref, err)
	}

	if len(fields) == 0 {
		// Vote hash expired or was deleted; check whether the message
		// itself is still there before deciding between zeros and an error.
		entries, xerr := rdb.XRange(ctx, c.stream, string(ref), string(ref)).Result()
		if xerr != nil {
			return nil, fmt.Errorf("fetch poll message %s: %w", ref, xerr)
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("poll %s: %w", ref, ErrMessageNotFound)
		}
		return make([]int, optionCount), nil
	}

	counts := make([]int, optionCount)
	for i := 0; i < optionCount; i++ {
		raw, ok := fields[strconv.Itoa(i)]
		if !ok {
			continue
		}
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return nil, fmt.Errorf("fetch votes for %s: malformed count %q for option %d", ref, raw, i)
		}
		// Exclude the system's own seed marker.
		if n--; n < 0 {
			n = 0
		}
		counts[i] = n
	}
	return counts, nil
}

// CastVote increments the count for one option. This is the reaction-click
// equivalent exercised by the surrounding application and by tests.
func (c *RedisChannel) CastVote(ctx context.Context, ref MessageRef, option int) error {
	return c.client.GetClient().HIncrBy(ctx, c.votesKey(ref), strconv.Itoa(option), 1).Err()
}

func (c *RedisChannel) votesKey(ref MessageRef) string {
	return "challenge:votes:" + string(ref)
}
