package announce

import (
	"fmt"
	"strings"

	"github.com/habitforge/challenge-engine/pkg/catalog"
)

// ResultsDisplayLimit bounds the ranked list in the results message. A
// presentation concern only: reward issuance covers every completed
// participant regardless of truncation.
const ResultsDisplayLimit = 10

// RenderPoll builds the weekly voting message body.
func RenderPoll(options []PollOption) string {
	var b strings.Builder
	b.WriteString("Vote for Next Week's Challenge!\n\n")
	b.WriteString("Choose which challenge you want to tackle next week.\n")
	b.WriteString("The option with the most votes deploys on Sunday.\n\n")
	for _, opt := range options {
		fmt.Fprintf(&b, "%d. %s (%s)\n", opt.Position+1, opt.Name, opt.Category)
		fmt.Fprintf(&b, "   - %s\n", opt.DailyRequirement)
		fmt.Fprintf(&b, "   - Minimal: %s\n", opt.MinimalDose)
	}
	b.WriteString("\nPoll closes when the new challenge deploys.")
	return b.String()
}

// RenderAnnouncement builds the deployed-challenge message body.
func RenderAnnouncement(ch catalog.Challenge, weekStart, weekEnd, rewardTerms string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly Challenge #%d: %s\n\n", ch.ID, ch.Name)
	b.WriteString(ch.Description)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Daily Requirement: %s\n", ch.DailyRequirement)
	fmt.Fprintf(&b, "Minimal Dose: %s\n", ch.MinimalDose)
	fmt.Fprintf(&b, "Days Required: %d days\n", ch.DaysRequired)
	fmt.Fprintf(&b, "Category: %s\n", ch.Category)
	fmt.Fprintf(&b, "Source: %s\n", ch.Source)
	if ch.Link != "" {
		fmt.Fprintf(&b, "Learn More: %s\n", ch.Link)
	}
	fmt.Fprintf(&b, "Challenge Period: %s -> %s\n", weekStart, weekEnd)
	fmt.Fprintf(&b, "Reward: %s\n\n", rewardTerms)
	b.WriteString("Join the challenge and submit your proofs in this channel!")
	return b.String()
}

// RenderProgressSummary builds the mid-week reminder body.
func RenderProgressSummary(stats ProgressStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mid-Week Reminder: %s\n\n", stats.ChallengeName)
	b.WriteString("You're halfway through this week's challenge. Keep up the momentum!\n\n")
	fmt.Fprintf(&b, "Participants: %d\n", stats.ParticipantCount)
	fmt.Fprintf(&b, "Total Proofs: %d\n", stats.TotalProofs)
	fmt.Fprintf(&b, "Average: %.1f proofs per person\n", stats.AvgProofs)
	fmt.Fprintf(&b, "On Track: %d/%d participants\n", stats.OnTrackCount, stats.ParticipantCount)
	fmt.Fprintf(&b, "Days Remaining: %d\n", stats.DaysRemaining)
	fmt.Fprintf(&b, "Goal: %d days needed\n\n", stats.DaysRequired)
	b.WriteString("Submit your proof today to stay on track!")
	return b.String()
}

// RenderResults builds the evaluation results body with a ranked list
// truncated at ResultsDisplayLimit.
func RenderResults(result EvaluationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Challenge Results: %s\n", result.ChallengeName)
	fmt.Fprintf(&b, "Week %s -> %s\n\n", result.WeekStart, result.WeekEnd)
	fmt.Fprintf(&b, "Total Participants: %d\n", result.TotalParticipants)
	fmt.Fprintf(&b, "Winners: %d\n", len(result.Winners))
	fmt.Fprintf(&b, "Total Rewards: %d\n", result.TotalRewardsAwarded)

	if len(result.Winners) > 0 {
		b.WriteString("\nChallenge Completers:\n")
		for i, w := range result.Winners {
			fmt.Fprintf(&b, "%s %s - %d/%d days (%d full, %d minimal)\n",
				medal(i), w.Name, w.ProofsSubmitted, w.DaysRequired, w.FullProofCount, w.MinimalDoseCount)
		}
	}

	if len(result.Participants) > 0 {
		b.WriteString("\nAll Participants:\n")
		shown := result.Participants
		if len(shown) > ResultsDisplayLimit {
			shown = shown[:ResultsDisplayLimit]
		}
		for _, p := range shown {
			status := "incomplete"
			if p.Completed {
				status = "completed"
			}
			fmt.Fprintf(&b, "- %s: %d/%d days (%s)\n", p.Name, p.ProofsSubmitted, p.DaysRequired, status)
		}
		if rest := len(result.Participants) - ResultsDisplayLimit; rest > 0 {
			fmt.Fprintf(&b, "...and %d more\n", rest)
		}
	}

	return b.String()
}

func medal(rank int) string {
	switch rank {
	case 0:
		return "[1st]"
	case 1:
		return "[2nd]"
	case 2:
		return "[3rd]"
	default:
		return "[*]"
	}
}
