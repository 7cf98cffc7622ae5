package scheduler

import (
	"context"
	"fmt"

	"github.com/habitforge/challenge-engine/pkg/announce"
	"go.uber.org/zap"
)

// SendChallengePoll posts the voting message for the current poll group and
// then advances the group pointer. Rotation happens only after a successful
// post, so a failed post is retried against the same group next time. The
// poll never touches the active challenge index.
func (a *App) SendChallengePoll(ctx context.Context) error {
	group := a.State.PollGroup()

	challenges := a.Catalog.Group(group)
	if len(challenges) == 0 {
		return fmt.Errorf("no challenges in poll group %d", group)
	}

	options := make([]announce.PollOption, len(challenges))
	for i, ch := range challenges {
		options[i] = announce.PollOption{
			Position:         i,
			Name:             ch.Name,
			Category:         ch.Category,
			DailyRequirement: ch.DailyRequirement,
			MinimalDose:      ch.MinimalDose,
		}
	}

	ref, err := a.Channel.PostPoll(ctx, options)
	if err != nil {
		return fmt.Errorf("post poll: %w", err)
	}

	if err := a.State.SetPollMessageRef(ctx, string(ref)); err != nil {
		return fmt.Errorf("persist poll ref: %w", err)
	}
	if err := a.State.RotatePollGroup(ctx); err != nil {
		return fmt.Errorf("rotate poll group: %w", err)
	}

	a.Logger.Info("Challenge poll sent",
		zap.Int("group", group),
		zap.Int("options", len(options)),
		zap.String("ref", string(ref)))
	return nil
}
