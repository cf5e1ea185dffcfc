package wolfdto

// Stable error codes returned in tool envelopes.
const (
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodeInvalidPhase     = "invalid_phase"
	CodeForbiddenRole    = "forbidden_role"
	CodeNotYourTurn      = "not_your_turn"
	CodeAlreadySubmitted = "already_submitted"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "match service error"
}
