package domain

import "time"

// Message channel actions.
const (
	ActionCheckModelStatus   = "checkModelStatus"
	ActionLoadModel          = "loadModel"
	ActionUnloadModel        = "unloadModel"
	ActionExplainImage       = "explainImage"
	ActionCheckRequestStatus = "checkRequestStatus"
)

// Message is a client to coordinator request on the message channel.
type Message struct {
	Action    string `json:"action"`
	ImageData string `json:"imageData,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ModelStatusResponse struct {
	Status ModelStatus `json:"status"`
}

// RequestStatus is the checkRequestStatus response: a WorkItem view, or just
// {status: unknown}.
type RequestStatus struct {
	RequestID string     `json:"requestId,omitempty"`
	Status    WorkStatus `json:"status"`
	Result    *Result    `json:"result,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func UnknownRequestStatus() RequestStatus {
	return RequestStatus{Status: WorkUnknown}
}

func RequestStatusOf(item WorkItem) RequestStatus {
	created, updated := item.CreatedAt, item.UpdatedAt
	return RequestStatus{
		RequestID: item.ID,
		Status:    item.Status,
		Result:    item.Result,
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
}

// WorkItem converts a known status back into a WorkItem.
func (r RequestStatus) WorkItem() WorkItem {
	item := WorkItem{ID: r.RequestID, Status: r.Status, Result: r.Result}
	if r.CreatedAt != nil {
		item.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		item.UpdatedAt = *r.UpdatedAt
	}
	return item
}
