package wolfdto

import "time"

type QueueInfo struct {
	QueueID               string `json:"queueId"`
	Size                  int    `json:"size"`
	RequiredPlayers       int    `json:"requiredPlayers"`
	Position              int    `json:"position,omitempty"` // 1-based, caller only
	Status                string `json:"status,omitempty"`
	EstimatedStartSeconds int    `json:"estimatedStartSeconds,omitempty"`
}

// MatchAssignment is returned once a join tips the queue over the
// formation threshold.
type MatchAssignment struct {
	MatchID            string    `json:"matchId"`
	BuildingInstanceID string    `json:"buildingInstanceId"`
	LocationX          int       `json:"locationX"`
	LocationY          int       `json:"locationY"`
	Seat               int       `json:"seat"`
	JoinedAt           time.Time `json:"joinedAt"`
}

type QueueJoinResponse struct {
	Envelope
	Queue      *QueueInfo       `json:"queue,omitempty"`
	Assignment *MatchAssignment `json:"assignment,omitempty"`
}

type QueueLeaveResponse struct {
	Envelope
	Removed bool       `json:"removed"`
	Queue   *QueueInfo `json:"queue,omitempty"`
}

type QueueStatusResponse struct {
	Envelope
	Queue      *QueueInfo       `json:"queue,omitempty"`
	Assignment *MatchAssignment `json:"assignment,omitempty"`
}
