package wolfdto

// Mutating match tools return the seq of the event they created. Ready
// omits it when the caller was already ready and no event was written.

type ReadyResponse struct {
	Envelope
	EventID int64  `json:"eventId,omitempty"`
	Phase   string `json:"phase,omitempty"`
}

type SayPublicResponse struct {
	Envelope
	EventID int64 `json:"eventId,omitempty"`
}

type VoteResponse struct {
	Envelope
	EventID   int64 `json:"eventId,omitempty"`
	Abstained bool  `json:"abstained"`
}

type WolfChatResponse struct {
	Envelope
	EventID int64 `json:"eventId,omitempty"`
}

type WolfKillResponse struct {
	Envelope
	EventID  int64  `json:"eventId,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

type SeerInspectResponse struct {
	Envelope
	EventID int64  `json:"eventId,omitempty"`
	Verdict string `json:"verdict,omitempty"`
}

type DoctorProtectResponse struct {
	Envelope
	EventID  int64  `json:"eventId,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}
