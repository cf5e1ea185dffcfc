package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

// advanceLocked moves the match to its next phase. Called on deadline
// expiry and on early completion; the caller holds the write lock.
func (e *Engine) advanceLocked() {
	switch e.m.Phase {
	case domain.PhaseLobby:
		e.startNightLocked()
	case domain.PhaseNight:
		e.resolveNightLocked()
	case domain.PhaseDayAnnounce:
		e.enterPhaseLocked(domain.PhaseDayOpening, e.cfg.OpeningDuration)
		e.setSummaryLocked("day.opening", map[string]any{"Day": e.m.DayNumber})
	case domain.PhaseDayOpening:
		e.enterPhaseLocked(domain.PhaseDayDiscussion, e.cfg.DiscussDuration)
		e.setSummaryLocked("day.discussion", map[string]any{"Day": e.m.DayNumber})
	case domain.PhaseDayDiscussion:
		e.enterPhaseLocked(domain.PhaseDayVote, e.cfg.VoteDuration)
		e.setSummaryLocked("day.vote", map[string]any{"Day": e.m.DayNumber})
	case domain.PhaseDayVote:
		e.resolveVoteLocked()
	case domain.PhaseDayResolution:
		if winner := e.winnerLocked(); winner != "" {
			e.endMatchLocked(winner)
			return
		}
		e.startNightLocked()
	}
}

// enterPhaseLocked records the transition and resets the per-phase
// working state.
func (e *Engine) enterPhaseLocked(next domain.Phase, d time.Duration) {
	now := e.nowOrInit()
	e.m.Phase = next
	e.m.PhaseStartedAt = now
	e.m.PhaseEndsAt = now.Add(d)

	e.wolfPicks = make(map[string]string)
	e.doctorTarget = ""
	e.seerDone = false
	e.openingPosted = make(map[string]bool)

	e.appendEvent(domain.EventPhaseChanged, domain.VisibilityPublic, "", map[string]any{
		"phase":       string(next),
		"dayNumber":   e.m.DayNumber,
		"nightNumber": e.m.NightNumber,
		"endsAt":      e.m.PhaseEndsAt,
	})
	e.logger.Info("phase_changed",
		zap.String("match_id", e.m.ID),
		zap.String("phase", string(next)),
		zap.Int("day", e.m.DayNumber),
		zap.Int("night", e.m.NightNumber),
	)
}

func (e *Engine) startNightLocked() {
	e.m.NightNumber++
	e.enterPhaseLocked(domain.PhaseNight, e.cfg.NightDuration)
	e.setSummaryLocked("night.begin", map[string]any{"Night": e.m.NightNumber})
}

// allNightActionsInLocked reports whether every living role holder has
// submitted its night action.
func (e *Engine) allNightActionsInLocked() bool {
	for _, p := range e.m.Players {
		if !p.Alive {
			continue
		}
		switch p.Role {
		case domain.RoleWerewolf:
			if _, ok := e.wolfPicks[p.PlayerID]; !ok {
				return false
			}
		case domain.RoleSeer:
			if !e.seerDone {
				return false
			}
		case domain.RoleDoctor:
			if e.doctorTarget == "" {
				return false
			}
		}
	}
	return true
}

// resolveNightLocked applies the wolf kill against the doctor's
// protection, then either ends the match or opens the next day.
func (e *Engine) resolveNightLocked() {
	victimID := e.nightVictimLocked()
	saved := victimID != "" && victimID == e.doctorTarget
	e.doctorPrevTarget = e.doctorTarget

	e.m.DayNumber++
	e.enterPhaseLocked(domain.PhaseDayAnnounce, e.cfg.AnnounceDuration)

	// killedPlayerId is always present, explicitly null on a quiet or
	// saved night, so clients never have to guess a missing key.
	result := map[string]any{
		"night":          e.m.NightNumber,
		"savedByDoctor":  saved,
		"killedPlayerId": nil,
	}
	if !saved && victimID != "" {
		result["killedPlayerId"] = victimID
	}
	e.appendEvent(domain.EventNightResult, domain.VisibilityPublic, "", result)

	if saved || victimID == "" {
		e.setSummaryLocked("night.saved", map[string]any{"Night": e.m.NightNumber})
	} else {
		victim := e.m.PlayerByID(victimID)
		e.eliminateLocked(victim, "WOLF_KILL")
		e.setSummaryLocked("night.kill", map[string]any{
			"Night": e.m.NightNumber,
			"Name":  victim.DisplayName,
		})
		if winner := e.winnerLocked(); winner != "" {
			e.endMatchLocked(winner)
			return
		}
	}
}

// nightVictimLocked tallies the wolves' picks. Ties break by seeded
// draw over the sorted leaders; a night with no wolf submission falls
// back to a seeded draw over the living non-wolves, so the night never
// stalls the match.
func (e *Engine) nightVictimLocked() string {
	counts := make(map[string]int)
	for _, target := range e.wolfPicks {
		counts[target]++
	}
	leaders := Leaders(counts)
	if len(leaders) == 1 {
		return leaders[0]
	}
	if len(leaders) > 1 {
		return leaders[e.rng.Intn(len(leaders))]
	}
	pool := e.m.LivingNonWolves()
	if len(pool) == 0 {
		return ""
	}
	return pool[e.rng.Intn(len(pool))].PlayerID
}

// resolveVoteLocked counts the day ballots and applies the result. An
// all-abstain round eliminates nobody.
func (e *Engine) resolveVoteLocked() {
	votes := TallyCurrentVotes(e.m)
	counts := CountVotes(votes)
	leaders := Leaders(counts)

	day := e.m.DayNumber
	e.enterPhaseLocked(domain.PhaseDayResolution, e.cfg.ResolutionPause)

	if len(leaders) == 0 {
		e.appendEvent(domain.EventNarrator, domain.VisibilityPublic, "", map[string]any{
			"kind": "VOTE_NO_ELIMINATION",
			"day":  day,
		})
		e.setSummaryLocked("vote.abstain", map[string]any{"Day": day})
		return
	}

	victimID := leaders[0]
	if len(leaders) > 1 {
		victimID = leaders[e.rng.Intn(len(leaders))]
	}
	victim := e.m.PlayerByID(victimID)
	e.eliminateLocked(victim, "VOTE")
	e.setSummaryLocked("vote.eliminated", map[string]any{
		"Day":  day,
		"Name": victim.DisplayName,
		"Role": string(victim.Role),
	})
}

// eliminateLocked kills the player and reveals the role publicly.
func (e *Engine) eliminateLocked(p *domain.Player, cause string) {
	p.Alive = false
	p.RevealedRole = p.Role
	e.appendEvent(domain.EventPlayerEliminated, domain.VisibilityPublic, "", map[string]any{
		"playerId": p.PlayerID,
		"role":     string(p.Role),
		"cause":    cause,
	})
}

// winnerLocked evaluates the end conditions. Villagers win when the
// last wolf dies; wolves win once they reach parity with the rest.
func (e *Engine) winnerLocked() domain.Team {
	wolves := len(e.m.LivingWolves())
	others := len(e.m.LivingNonWolves())
	if wolves == 0 {
		return domain.TeamVillagers
	}
	if wolves >= others {
		return domain.TeamWerewolves
	}
	return ""
}

func (e *Engine) endMatchLocked(winner domain.Team) {
	e.enterPhaseLocked(domain.PhaseEnded, 0)
	now := e.nowOrInit()
	e.m.EndedAt = &now
	e.m.WinningTeam = winner
	e.appendEvent(domain.EventGameEnded, domain.VisibilityPublic, "", map[string]any{
		"winningTeam": string(winner),
	})
	switch winner {
	case domain.TeamVillagers:
		e.setSummaryLocked("game.ended.villagers", nil)
	case domain.TeamWerewolves:
		e.setSummaryLocked("game.ended.werewolves", nil)
	default:
		e.setSummaryLocked("game.ended.none", nil)
	}
	e.logger.Info("match_ended",
		zap.String("match_id", e.m.ID),
		zap.String("winning_team", string(winner)),
		zap.Int("days", e.m.DayNumber),
		zap.Int("nights", e.m.NightNumber),
	)
}

// setSummaryLocked refreshes the one-line public summary from the
// narrator catalog. Rendering failures keep the previous summary
// rather than surfacing template errors to players.
func (e *Engine) setSummaryLocked(key string, data map[string]any) {
	if e.cat == nil {
		return
	}
	text, err := e.cat.Render(key, data)
	if err != nil {
		e.logger.Warn("summary_render_failed", zap.String("key", key), zap.Error(err))
		return
	}
	e.m.PublicSummary = text
}
