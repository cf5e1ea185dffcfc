package wolfdto

// The acting player is always the authenticated caller; requests never
// name a playerId of their own. Every mutating request accepts an
// optional IdempotencyKey. The first completed call under a key wins;
// replays return the stored response.

type QueueJoinRequest struct {
	QueueID        string `json:"queueId,omitempty"`
	DisplayName    string `json:"preferredDisplayName,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type QueueLeaveRequest struct {
	QueueID        string `json:"queueId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type QueueStatusRequest struct {
	QueueID string `json:"queueId,omitempty"`
}

type MatchesListRequest struct {
	Status string `json:"status,omitempty"` // ACTIVE, ENDED or ALL
	Limit  int    `json:"limit,omitempty"`
}

type MatchStateRequest struct {
	MatchID                     string `json:"matchId"`
	IncludeRecentPublicMessages bool   `json:"includeRecentPublicMessages,omitempty"`
	RecentPublicMessagesLimit   int    `json:"recentPublicMessagesLimit,omitempty"`
}

type MatchEventsRequest struct {
	MatchID      string `json:"matchId"`
	AfterEventID int64  `json:"afterEventId,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

type ReadyRequest struct {
	MatchID        string `json:"matchId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type SayPublicRequest struct {
	MatchID        string `json:"matchId"`
	Kind           string `json:"kind"`
	Text           string `json:"text"`
	ReplyTo        string `json:"replyTo,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type VoteRequest struct {
	MatchID        string  `json:"matchId"`
	TargetID       *string `json:"targetId"` // null means abstain
	Reason         string  `json:"reason,omitempty"`
	IdempotencyKey string  `json:"idempotencyKey,omitempty"`
}

type WolfChatRequest struct {
	MatchID        string `json:"matchId"`
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type WolfKillRequest struct {
	MatchID        string `json:"matchId"`
	TargetID       string `json:"targetId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type SeerInspectRequest struct {
	MatchID        string `json:"matchId"`
	TargetID       string `json:"targetId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type DoctorProtectRequest struct {
	MatchID        string `json:"matchId"`
	TargetID       string `json:"targetId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type HistoryRecentRequest struct {
	Limit int `json:"limit,omitempty"`
}

type AdminEndMatchRequest struct {
	MatchID        string `json:"matchId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
