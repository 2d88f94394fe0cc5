package types

import "github.com/Jaberkh/Nut-test/pkg/stats"

// StateResponse is what the rendering layer consumes for a served request.
type StateResponse struct {
	Status         string       `json:"status"`
	Degraded       bool         `json:"degraded,omitempty"`
	Data           stats.Record `json:"data"`
	HashID         string       `json:"hashId"`
	FrameURL       string       `json:"frameUrl"`
	ComposeCastURL string       `json:"composeCastUrl"`
}

// ErrorResponse covers the degraded outcomes: rate limited, busy, failed.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
