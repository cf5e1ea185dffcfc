package wolfdto

import "time"

type MatchRecordDTO struct {
	MatchID     string            `json:"matchId"`
	WinningTeam string            `json:"winningTeam"`
	Days        int               `json:"days"`
	Nights      int               `json:"nights"`
	Players     []PlayerResultDTO `json:"players"`
	StartedAt   time.Time         `json:"startedAt"`
	EndedAt     time.Time         `json:"endedAt"`
	DurationMS  int64             `json:"durationMs"`
	EventCount  int               `json:"eventCount"`
}

type PlayerResultDTO struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Seat        int    `json:"seat"`
	Role        string `json:"role"`
	Survived    bool   `json:"survived"`
	Won         bool   `json:"won"`
}

type HistoryRecentResponse struct {
	Envelope
	Records []MatchRecordDTO `json:"records"`
}
