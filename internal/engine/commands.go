package engine

import (
	"strings"

	"github.com/kapu/werewolf-arena-go/internal/domain"
)

const maxMessageLen = 2000

// Ready marks the caller ready during the lobby. When the last seated
// player readies up the first night starts immediately. Returns the
// PLAYER_READY event seq, or 0 when the caller was already ready.
func (e *Engine) Ready(playerID string) (int64, error) {
	var seq int64
	err := e.apply(func() error {
		p, err := e.actorLocked(playerID)
		if err != nil {
			return e.rejected(playerID, "ready", err)
		}
		if e.m.Phase != domain.PhaseLobby {
			return e.rejected(playerID, "ready", ErrInvalidPhase)
		}
		if p.Ready {
			return nil
		}
		p.Ready = true
		seq = e.appendEvent(domain.EventNarrator, domain.VisibilityPublic, "", map[string]any{
			"kind":     "PLAYER_READY",
			"playerId": p.PlayerID,
		}).Seq
		for _, other := range e.m.Players {
			if !other.Ready {
				return nil
			}
		}
		e.startNightLocked()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// SayPublic posts a public table message and returns its event seq.
// OPENING statements are restricted to the opening phase and limited
// to one per player; the other kinds belong to the discussion phase.
func (e *Engine) SayPublic(playerID, kind, text, replyTo string) (int64, error) {
	var seq int64
	err := e.apply(func() error {
		p, err := e.actorLocked(playerID)
		if err != nil {
			return e.rejected(playerID, "say_public", err)
		}
		text = strings.TrimSpace(text)
		if text == "" || len(text) > maxMessageLen {
			return e.rejected(playerID, "say_public", ErrInvalidArgs)
		}
		switch kind {
		case domain.MessageKindOpening:
			if e.m.Phase != domain.PhaseDayOpening {
				return e.rejected(playerID, "say_public", ErrInvalidPhase)
			}
			if e.openingPosted[p.PlayerID] {
				return e.rejected(playerID, "say_public", ErrAlreadySubmitted)
			}
		case domain.MessageKindDiscussion, domain.MessageKindDefense, domain.MessageKindLastWords:
			if e.m.Phase != domain.PhaseDayDiscussion {
				return e.rejected(playerID, "say_public", ErrInvalidPhase)
			}
		default:
			return e.rejected(playerID, "say_public", ErrInvalidArgs)
		}
		payload := map[string]any{
			"playerId": p.PlayerID,
			"kind":     kind,
			"text":     text,
		}
		if replyTo != "" {
			payload["replyTo"] = replyTo
		}
		seq = e.appendEvent(domain.EventPublicMessage, domain.VisibilityPublic, "", payload).Seq

		if kind == domain.MessageKindOpening {
			e.openingPosted[p.PlayerID] = true
			for _, other := range e.m.Players {
				if other.Alive && !e.openingPosted[other.PlayerID] {
					return nil
				}
			}
			e.enterPhaseLocked(domain.PhaseDayDiscussion, e.cfg.DiscussDuration)
			e.setSummaryLocked("day.discussion", map[string]any{"Day": e.m.DayNumber})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// Vote records or revises the caller's day ballot. A nil target is an
// explicit abstention. Only the latest ballot per voter counts. The
// optional reason is carried in the public VOTE_CAST payload.
func (e *Engine) Vote(playerID string, targetID *string, reason string) (int64, error) {
	var seq int64
	err := e.apply(func() error {
		p, err := e.actorLocked(playerID)
		if err != nil {
			return e.rejected(playerID, "vote", err)
		}
		if e.m.Phase != domain.PhaseDayVote {
			return e.rejected(playerID, "vote", ErrInvalidPhase)
		}
		reason = strings.TrimSpace(reason)
		if len(reason) > maxMessageLen {
			return e.rejected(playerID, "vote", ErrInvalidArgs)
		}
		payload := map[string]any{
			"voterId": p.PlayerID,
			"abstain": targetID == nil,
		}
		if targetID != nil {
			target := e.m.PlayerByID(*targetID)
			if target == nil || !target.Alive {
				return e.rejected(playerID, "vote", ErrInvalidTarget)
			}
			payload["targetId"] = target.PlayerID
		}
		if reason != "" {
			payload["reason"] = reason
		}
		seq = e.appendEvent(domain.EventVoteCast, domain.VisibilityPublic, "", payload).Seq

		votes := TallyCurrentVotes(e.m)
		for _, other := range e.m.Players {
			if !other.Alive {
				continue
			}
			if _, ok := votes[other.PlayerID]; !ok {
				return nil
			}
		}
		e.resolveVoteLocked()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// WolfChat posts to the wolves' private channel and returns its event
// seq. Open at night only.
func (e *Engine) WolfChat(playerID, text string) (int64, error) {
	var seq int64
	err := e.apply(func() error {
		p, err := e.actorLocked(playerID)
		if err != nil {
			return e.rejected(playerID, "wolf_chat", err)
		}
		if !p.IsWolf() {
			return e.rejected(playerID, "wolf_chat", ErrForbiddenRole)
		}
		if e.m.Phase != domain.PhaseNight {
			return e.rejected(playerID, "wolf_chat", ErrInvalidPhase)
		}
		text = strings.TrimSpace(text)
		if text == "" || len(text) > maxMessageLen {
			return e.rejected(playerID, "wolf_chat", ErrInvalidArgs)
		}
		seq = e.appendEvent(domain.EventWolfChatMessage, domain.VisibilityWolves, "", map[string]any{
			"playerId": p.PlayerID,
			"text":     text,
			"night":    e.m.NightNumber,
		}).Seq
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// WolfKill records the wolf's kill pick for the current night. One
// pick per wolf per night; the pick itself is visible to the pack.
func (e *Engine) WolfKill(playerID, targetID string) (int64, error) {
	var seq int64
	err := e.apply(func() error {
		p, err := e.actorLocked(playerID)
		if err != nil {
			return e.rejected(playerID, "wolf_kill", err)
		}
		if !p.IsWolf() {
			return e.rejected(playerID, "wolf_kill", ErrForbiddenRole)
		}
		if e.m.Phase != domain.PhaseNight {
			return e.rejected(playerID, "wolf_kill", ErrInvalidPhase)
		}
		if _, ok := e.wolfPicks[p.PlayerID]; ok {
			return e.rejected(playerID, "wolf_kill", ErrAlreadySubmitted)
		}
		target := e.m.PlayerByID(targetID)
		if target == nil || !target.Alive || target.IsWolf() {
			return e.rejected(playerID, "wolf_kill", ErrInvalidTarget)
		}
		e.wolfPicks[p.PlayerID] = target.PlayerID
		seq = e.appendEvent(domain.EventVoteCast, domain.VisibilityWolves, "", map[string]any{
			"voterId":  p.PlayerID,
			"targetId": target.PlayerID,
			"scope":    "WOLF_KILL",
			"night":    e.m.NightNumber,
		}).Seq
		if e.allNightActionsInLocked() {
			e.resolveNightLocked()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// SeerInspect reveals whether the target is a werewolf. The verdict is
// returned to the seer and recorded as a private event; one inspection
// per night.
func (e *Engine) SeerInspect(playerID, targetID string) (string, int64, error) {
	var (
		verdict string
		seq     int64
	)
	err := e.apply(func() error {
		p, err := e.actorLocked(playerID)
		if err != nil {
			return e.rejected(playerID, "seer_inspect", err)
		}
		if p.Role != domain.RoleSeer {
			return e.rejected(playerID, "seer_inspect", ErrForbiddenRole)
		}
		if e.m.Phase != domain.PhaseNight {
			return e.rejected(playerID, "seer_inspect", ErrInvalidPhase)
		}
		if e.seerDone {
			return e.rejected(playerID, "seer_inspect", ErrAlreadySubmitted)
		}
		target := e.m.PlayerByID(targetID)
		if target == nil || !target.Alive || target.PlayerID == p.PlayerID {
			return e.rejected(playerID, "seer_inspect", ErrInvalidTarget)
		}
		verdict = "NOT_WEREWOLF"
		if target.IsWolf() {
			verdict = "WEREWOLF"
		}
		e.seerDone = true
		seq = e.appendEvent(domain.EventNarrator, domain.VisibilityPlayer, p.PlayerID, map[string]any{
			"kind":     "SEER_VERDICT",
			"night":    e.m.NightNumber,
			"targetId": target.PlayerID,
			"verdict":  verdict,
		}).Seq
		if e.allNightActionsInLocked() {
			e.resolveNightLocked()
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return verdict, seq, nil
}

// DoctorProtect shields one living player for the night. The doctor
// may self-protect but never the same target two nights in a row.
func (e *Engine) DoctorProtect(playerID, targetID string) (int64, error) {
	var seq int64
	err := e.apply(func() error {
		p, err := e.actorLocked(playerID)
		if err != nil {
			return e.rejected(playerID, "doctor_protect", err)
		}
		if p.Role != domain.RoleDoctor {
			return e.rejected(playerID, "doctor_protect", ErrForbiddenRole)
		}
		if e.m.Phase != domain.PhaseNight {
			return e.rejected(playerID, "doctor_protect", ErrInvalidPhase)
		}
		if e.doctorTarget != "" {
			return e.rejected(playerID, "doctor_protect", ErrAlreadySubmitted)
		}
		target := e.m.PlayerByID(targetID)
		if target == nil || !target.Alive {
			return e.rejected(playerID, "doctor_protect", ErrInvalidTarget)
		}
		if target.PlayerID == e.doctorPrevTarget {
			return e.rejected(playerID, "doctor_protect", ErrInvalidTarget)
		}
		e.doctorTarget = target.PlayerID
		seq = e.appendEvent(domain.EventNarrator, domain.VisibilityPlayer, p.PlayerID, map[string]any{
			"kind":     "PROTECTION_SET",
			"night":    e.m.NightNumber,
			"targetId": target.PlayerID,
		}).Seq
		if e.allNightActionsInLocked() {
			e.resolveNightLocked()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// AdminEnd force-ends the match with no winning team. Used by
// operators to reclaim a stuck or abandoned match.
func (e *Engine) AdminEnd() error {
	return e.apply(func() error {
		if e.m.Phase == domain.PhaseEnded {
			return ErrMatchEnded
		}
		e.endMatchLocked(domain.TeamNone)
		return nil
	})
}
