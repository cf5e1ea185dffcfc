package wolfdto

import "time"

// PlayerPublic is what any viewer may know about a seat. Roles only
// appear here once revealed by elimination.
type PlayerPublic struct {
	PlayerID     string `json:"playerId"`
	DisplayName  string `json:"displayName"`
	Seat         int    `json:"seat"`
	Alive        bool   `json:"alive"`
	Ready        bool   `json:"ready"`
	RevealedRole string `json:"revealedRole,omitempty"`
}

type RequiredActionDTO struct {
	Type             string   `json:"type"`
	AllowedTargets   []string `json:"allowedTargets,omitempty"`
	AlreadySubmitted bool     `json:"alreadySubmitted"`
}

// PlayerView is the caller's private slice of the state: own role,
// pack membership for wolves, past verdicts for the seer, and the
// action the current phase expects.
type PlayerView struct {
	Role           string             `json:"role"`
	Alive          bool               `json:"alive"`
	KnownWolves    []string           `json:"knownWolves,omitempty"`
	SeerHistory    []SeerVerdictDTO   `json:"seerHistory,omitempty"`
	RequiredAction *RequiredActionDTO `json:"requiredAction,omitempty"`
}

type SeerVerdictDTO struct {
	Night    int    `json:"night"`
	TargetID string `json:"targetId"`
	Verdict  string `json:"verdict"`
}

type MatchSummary struct {
	MatchID            string     `json:"matchId"`
	BuildingInstanceID string     `json:"buildingInstanceId"`
	Phase              string     `json:"phase"`
	DayNumber          int        `json:"dayNumber"`
	NightNumber        int        `json:"nightNumber"`
	PhaseEndsAt        time.Time  `json:"phaseEndsAt"`
	AliveCount         int        `json:"playersAlive"`
	WinningTeam        string     `json:"winningTeam,omitempty"`
	PublicSummary      string     `json:"publicSummary"`
	StartedAt          time.Time  `json:"startedAt"`
	EndedAt            *time.Time `json:"endedAt,omitempty"`
}

// PublicMessageDTO is one table message, included in state responses
// when the caller asks for recent public messages.
type PublicMessageDTO struct {
	EventID  int64     `json:"eventId"`
	At       time.Time `json:"at"`
	PlayerID string    `json:"playerId"`
	Kind     string    `json:"kind"`
	Text     string    `json:"text"`
}

// MatchStateResponse flattens the match summary into the top level, so
// phase, dayNumber, phaseEndsAt and playersAlive sit next to players
// and you rather than under a nested object.
type MatchStateResponse struct {
	Envelope
	*MatchSummary
	Players              []PlayerPublic     `json:"players,omitempty"`
	RecentPublicMessages []PublicMessageDTO `json:"recentPublicMessages,omitempty"`
	You                  *PlayerView        `json:"you,omitempty"`
}

type MatchesListResponse struct {
	Envelope
	Matches []*MatchSummary `json:"matches,omitempty"`
}
