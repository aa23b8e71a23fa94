package domain

import "time"

// ClientViewState is the last-known state of one client view, persisted so the
// view can be closed and reopened without losing an in-flight request.
type ClientViewState struct {
	ImageData    string    `json:"imageData,omitempty"`
	Explanation  string    `json:"explanation,omitempty"`
	Error        string    `json:"error,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	IsProcessing bool      `json:"isProcessing"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Normalize keeps RequestID and IsProcessing consistent: a request id is
// present iff the view is processing.
func (v *ClientViewState) Normalize() {
	if v.RequestID == "" {
		v.IsProcessing = false
	}
	if !v.IsProcessing {
		v.RequestID = ""
	}
}

// Awaiting reports whether the view was waiting on a request when saved.
func (v ClientViewState) Awaiting() bool {
	return v.IsProcessing && v.RequestID != ""
}
