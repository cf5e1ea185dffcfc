package wolfdto

import "time"

// EventDTO mirrors one visible log entry. EventID is the paging
// cursor: pass the last seen id back as afterEventId.
type EventDTO struct {
	EventID    int64          `json:"eventId"`
	At         time.Time      `json:"at"`
	Type       string         `json:"type"`
	Visibility string         `json:"visibility"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type EventsResponse struct {
	Envelope
	MatchID     string     `json:"matchId"`
	Events      []EventDTO `json:"events"`
	LastEventID int64      `json:"lastEventId"`
	HasMore     bool       `json:"hasMore"`
}
