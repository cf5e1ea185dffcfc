package wolfdto

type AdminEndMatchResponse struct {
	Envelope
	Ended bool `json:"ended"`
}
