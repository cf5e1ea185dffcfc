package wolfdto

import "time"

// Envelope is the uniform frame every tool response carries. Exactly
// one of the embedding response's payload fields or Error is set.
type Envelope struct {
	OK         bool         `json:"ok"`
	ServerTime time.Time    `json:"serverTime"`
	Error      *DomainError `json:"error,omitempty"`
}
