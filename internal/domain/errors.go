package domain

import "errors"

var (
	ErrResourceNotLoaded  = errors.New("resource not loaded")
	ErrSessionTornDown    = errors.New("session torn down")
	ErrUnknownRequest     = errors.New("request status unknown")
	ErrModelLoading       = errors.New("model is still loading")
	ErrSubmissionDisabled = errors.New("submission disabled: model failed to load")
	ErrWorkItemNotFound   = errors.New("work item not found")
)
