package domain

import "time"

// WorkStatus is the lifecycle status of a WorkItem. There is no queued state:
// an item is created already processing.
type WorkStatus string

const (
	WorkProcessing WorkStatus = "processing"
	WorkCompleted  WorkStatus = "completed"
	WorkError      WorkStatus = "error"

	// WorkUnknown is never stored. It is what status lookups report for
	// ids the coordinator has no record of.
	WorkUnknown WorkStatus = "unknown"
)

func (s WorkStatus) Terminal() bool {
	return s == WorkCompleted || s == WorkError
}

// Result is the terminal outcome of a WorkItem, shaped like the explainImage
// response.
type Result struct {
	Success     bool   `json:"success"`
	Explanation string `json:"explanation,omitempty"`
	Error       string `json:"error,omitempty"`
}

// WorkItem is one tracked explanation request.
type WorkItem struct {
	ID          string     `json:"requestId"`
	Status      WorkStatus `json:"status"`
	InputDigest string     `json:"inputDigest,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (w WorkItem) Terminal() bool { return w.Status.Terminal() }

// RequestUpdate is the push message sent when a WorkItem reaches a terminal state.
type RequestUpdate struct {
	Action    string     `json:"action"`
	RequestID string     `json:"requestId"`
	Status    WorkStatus `json:"status"`
	Result    *Result    `json:"result,omitempty"`
}

const ActionRequestUpdate = "requestUpdate"

func NewRequestUpdate(item WorkItem) RequestUpdate {
	return RequestUpdate{
		Action:    ActionRequestUpdate,
		RequestID: item.ID,
		Status:    item.Status,
		Result:    item.Result,
	}
}
