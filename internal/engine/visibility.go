package engine

import (
	"github.com/kapu/werewolf-arena-go/internal/domain"
)

// ViewerContext identifies who is looking at a match. An omniscient
// viewer (narrator tooling, admin observer) sees every event.
type ViewerContext struct {
	PlayerID   string
	Omniscient bool
}

// FilterEvents returns the subset of the log the viewer is allowed to
// see, preserving order. The rules are pure functions of the snapshot:
// PUBLIC goes to everyone, WOLVES to seated werewolves dead or alive,
// PLAYER_PRIVATE only to the addressed player.
func FilterEvents(m *domain.Match, viewer ViewerContext) []*domain.Event {
	if viewer.Omniscient {
		out := make([]*domain.Event, len(m.Events))
		copy(out, m.Events)
		return out
	}
	p := m.PlayerByID(viewer.PlayerID)
	isWolf := p != nil && p.IsWolf()
	out := make([]*domain.Event, 0, len(m.Events))
	for _, ev := range m.Events {
		switch ev.Visibility {
		case domain.VisibilityPublic:
			out = append(out, ev)
		case domain.VisibilityWolves:
			if isWolf {
				out = append(out, ev)
			}
		case domain.VisibilityPlayer:
			if p != nil && ev.Audience == p.PlayerID {
				out = append(out, ev)
			}
		}
	}
	return out
}

// KnownWolves lists the pack's player ids, but only to a viewer who is
// a wolf themself. Everyone else gets nil.
func KnownWolves(m *domain.Match, playerID string) []string {
	p := m.PlayerByID(playerID)
	if p == nil || !p.IsWolf() {
		return nil
	}
	var ids []string
	for _, other := range m.Players {
		if other.IsWolf() {
			ids = append(ids, other.PlayerID)
		}
	}
	return ids
}

// SeerRecord is one past inspection, rebuilt from the seer's private
// events.
type SeerRecord struct {
	Night    int    `json:"night"`
	TargetID string `json:"targetId"`
	Verdict  string `json:"verdict"`
}

// SeerHistory returns every verdict delivered to the given player, in
// delivery order. Non-seers naturally get an empty history.
func SeerHistory(m *domain.Match, playerID string) []SeerRecord {
	var out []SeerRecord
	for _, ev := range m.Events {
		if ev.Type != domain.EventNarrator || ev.Visibility != domain.VisibilityPlayer || ev.Audience != playerID {
			continue
		}
		if kind, _ := ev.Payload["kind"].(string); kind != "SEER_VERDICT" {
			continue
		}
		night, _ := ev.Payload["night"].(int)
		if night == 0 {
			if f, ok := ev.Payload["night"].(float64); ok {
				night = int(f)
			}
		}
		target, _ := ev.Payload["targetId"].(string)
		verdict, _ := ev.Payload["verdict"].(string)
		out = append(out, SeerRecord{Night: night, TargetID: target, Verdict: verdict})
	}
	return out
}

// Action types surfaced to clients as the caller's pending obligation.
const (
	ActionNone          = "NONE"
	ActionReady         = "READY"
	ActionWolfKill      = "WOLF_KILL"
	ActionSeerInspect   = "SEER_INSPECT"
	ActionDoctorProtect = "DOCTOR_PROTECT"
	ActionOpening       = "OPENING_MESSAGE"
	ActionVote          = "VOTE"
)

// RequiredAction tells a player what the current phase expects of them
// and which targets are legal, so clients need no rules engine of
// their own.
type RequiredAction struct {
	Type             string   `json:"type"`
	AllowedTargets   []string `json:"allowedTargets,omitempty"`
	AlreadySubmitted bool     `json:"alreadySubmitted"`
}

func (e *Engine) requiredActionLocked(playerID string) *RequiredAction {
	none := &RequiredAction{Type: ActionNone}
	p := e.m.PlayerByID(playerID)
	if p == nil || !p.Alive {
		return none
	}
	switch e.m.Phase {
	case domain.PhaseLobby:
		return &RequiredAction{Type: ActionReady, AlreadySubmitted: p.Ready}
	case domain.PhaseNight:
		switch p.Role {
		case domain.RoleWerewolf:
			_, done := e.wolfPicks[p.PlayerID]
			return &RequiredAction{
				Type:             ActionWolfKill,
				AllowedTargets:   playerIDs(e.m.LivingNonWolves()),
				AlreadySubmitted: done,
			}
		case domain.RoleSeer:
			var targets []string
			for _, other := range e.m.Players {
				if other.Alive && other.PlayerID != p.PlayerID {
					targets = append(targets, other.PlayerID)
				}
			}
			return &RequiredAction{Type: ActionSeerInspect, AllowedTargets: targets, AlreadySubmitted: e.seerDone}
		case domain.RoleDoctor:
			var targets []string
			for _, other := range e.m.Players {
				if other.Alive && other.PlayerID != e.doctorPrevTarget {
					targets = append(targets, other.PlayerID)
				}
			}
			return &RequiredAction{Type: ActionDoctorProtect, AllowedTargets: targets, AlreadySubmitted: e.doctorTarget != ""}
		}
		return none
	case domain.PhaseDayOpening:
		return &RequiredAction{Type: ActionOpening, AlreadySubmitted: e.openingPosted[p.PlayerID]}
	case domain.PhaseDayVote:
		votes := TallyCurrentVotes(e.m)
		var targets []string
		for _, other := range e.m.Players {
			if other.Alive {
				targets = append(targets, other.PlayerID)
			}
		}
		_, voted := votes[p.PlayerID]
		return &RequiredAction{Type: ActionVote, AllowedTargets: targets, AlreadySubmitted: voted}
	}
	return none
}

func playerIDs(players []*domain.Player) []string {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.PlayerID)
	}
	return ids
}
