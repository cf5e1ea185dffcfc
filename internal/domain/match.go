package domain

import (
	"time"
)

type Phase string

const (
	PhaseLobby         Phase = "LOBBY"
	PhaseNight         Phase = "NIGHT"
	PhaseDayAnnounce   Phase = "DAY_ANNOUNCE"
	PhaseDayOpening    Phase = "DAY_OPENING"
	PhaseDayDiscussion Phase = "DAY_DISCUSSION"
	PhaseDayVote       Phase = "DAY_VOTE"
	PhaseDayResolution Phase = "DAY_RESOLUTION"
	PhaseEnded         Phase = "ENDED"
)

type Role string

const (
	RoleVillager Role = "VILLAGER"
	RoleWerewolf Role = "WEREWOLF"
	RoleSeer     Role = "SEER"
	RoleDoctor   Role = "DOCTOR"
)

type Team string

const (
	TeamVillagers  Team = "VILLAGERS"
	TeamWerewolves Team = "WEREWOLVES"
	TeamNone       Team = "NONE"
)

type EventType string

const (
	EventMatchCreated     EventType = "MATCH_CREATED"
	EventPhaseChanged     EventType = "PHASE_CHANGED"
	EventPublicMessage    EventType = "PUBLIC_MESSAGE"
	EventWolfChatMessage  EventType = "WOLF_CHAT_MESSAGE"
	EventVoteCast         EventType = "VOTE_CAST"
	EventNightResult      EventType = "NIGHT_RESULT"
	EventPlayerEliminated EventType = "PLAYER_ELIMINATED"
	EventGameEnded        EventType = "GAME_ENDED"
	EventNarrator         EventType = "NARRATOR"
)

type Visibility string

const (
	VisibilityPublic Visibility = "PUBLIC"
	VisibilityWolves Visibility = "WOLVES"
	VisibilityPlayer Visibility = "PLAYER_PRIVATE"
)

// Message kinds accepted by say_public.
const (
	MessageKindOpening    = "OPENING"
	MessageKindDiscussion = "DISCUSSION"
	MessageKindDefense    = "DEFENSE"
	MessageKindLastWords  = "LAST_WORDS"
)

// Event is an immutable, visibility-tagged record of something that
// happened in a match. Seq starts at 1 and doubles as the cursor the
// events tool pages on.
type Event struct {
	Seq        int64          `json:"seq"`
	At         time.Time      `json:"at"`
	Type       EventType      `json:"type"`
	Visibility Visibility     `json:"visibility"`
	Audience   string         `json:"audience,omitempty"` // playerId for PLAYER_PRIVATE
	Payload    map[string]any `json:"payload,omitempty"`
}

type Player struct {
	PlayerID     string `json:"playerId"`
	DisplayName  string `json:"displayName"`
	Seat         int    `json:"seat"`
	Role         Role   `json:"role"`
	Alive        bool   `json:"alive"`
	Ready        bool   `json:"ready"`
	RevealedRole Role   `json:"revealedRole,omitempty"` // set on elimination only
}

func (p *Player) IsWolf() bool { return p != nil && p.Role == RoleWerewolf }

// Match is the full authoritative state of one run of the game. It is
// mutated only by the owning engine and serialized as-is into the
// snapshot store.
type Match struct {
	ID                 string     `json:"id"`
	BuildingInstanceID string     `json:"buildingInstanceId"`
	Seed               int64      `json:"seed"`
	Phase              Phase      `json:"phase"`
	DayNumber          int        `json:"dayNumber"`
	NightNumber        int        `json:"nightNumber"`
	PhaseStartedAt     time.Time  `json:"phaseStartedAt"`
	PhaseEndsAt        time.Time  `json:"phaseEndsAt"`
	StartedAt          time.Time  `json:"startedAt"`
	EndedAt            *time.Time `json:"endedAt,omitempty"`
	WinningTeam        Team       `json:"winningTeam,omitempty"`
	PublicSummary      string     `json:"publicSummary"`
	Players            []*Player  `json:"players"`
	Events             []*Event   `json:"events"`
}

func (m *Match) PlayerByID(id string) *Player {
	for _, p := range m.Players {
		if p.PlayerID == id {
			return p
		}
	}
	return nil
}

func (m *Match) AliveCount() int {
	n := 0
	for _, p := range m.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

func (m *Match) LivingWolves() []*Player {
	var out []*Player
	for _, p := range m.Players {
		if p.Alive && p.IsWolf() {
			out = append(out, p)
		}
	}
	return out
}

func (m *Match) LivingNonWolves() []*Player {
	var out []*Player
	for _, p := range m.Players {
		if p.Alive && !p.IsWolf() {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy safe to hand to readers while the engine
// keeps mutating the original.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	cp := *m
	if m.EndedAt != nil {
		t := *m.EndedAt
		cp.EndedAt = &t
	}
	cp.Players = make([]*Player, len(m.Players))
	for i, p := range m.Players {
		pc := *p
		cp.Players[i] = &pc
	}
	cp.Events = make([]*Event, len(m.Events))
	for i, ev := range m.Events {
		ec := *ev
		if ev.Payload != nil {
			ec.Payload = make(map[string]any, len(ev.Payload))
			for k, v := range ev.Payload {
				ec.Payload[k] = v
			}
		}
		cp.Events[i] = &ec
	}
	return &cp
}
