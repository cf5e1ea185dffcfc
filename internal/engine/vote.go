package engine

import (
	"sort"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

// TallyCurrentVotes reconstructs the active ballot of the current vote
// round from the event log. Only public VOTE_CAST events appended after
// the latest transition into DAY_VOTE count, only living voters count,
// and a later ballot from the same voter replaces the earlier one. A
// nil value is an explicit abstention.
func TallyCurrentVotes(m *domain.Match) map[string]*string {
	start := -1
	for i, ev := range m.Events {
		if ev.Type != domain.EventPhaseChanged {
			continue
		}
		if phase, _ := ev.Payload["phase"].(string); phase == string(domain.PhaseDayVote) {
			start = i
		}
	}
	votes := make(map[string]*string)
	if start < 0 {
		return votes
	}
	for _, ev := range m.Events[start+1:] {
		if ev.Type != domain.EventVoteCast || ev.Visibility != domain.VisibilityPublic {
			continue
		}
		voterID, _ := ev.Payload["voterId"].(string)
		voter := m.PlayerByID(voterID)
		if voter == nil || !voter.Alive {
			continue
		}
		if abstain, _ := ev.Payload["abstain"].(bool); abstain {
			votes[voterID] = nil
			continue
		}
		targetID, _ := ev.Payload["targetId"].(string)
		if targetID == "" {
			votes[voterID] = nil
			continue
		}
		t := targetID
		votes[voterID] = &t
	}
	return votes
}

// CountVotes folds a ballot into per-target counts. Abstentions carry
// no weight.
func CountVotes(votes map[string]*string) map[string]int {
	counts := make(map[string]int)
	for _, target := range votes {
		if target != nil {
			counts[*target]++
		}
	}
	return counts
}

// Leaders returns the target ids holding the highest count, sorted so
// a seeded tie-break draws from a stable order. Empty counts yield an
// empty slice.
func Leaders(counts map[string]int) []string {
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	if best == 0 {
		return nil
	}
	var leaders []string
	for id, n := range counts {
		if n == best {
			leaders = append(leaders, id)
		}
	}
	sort.Strings(leaders)
	return leaders
}
