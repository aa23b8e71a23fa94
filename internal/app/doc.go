// Package app provides the application service layer.
//
// Coordinator tracks explanation requests from submission to a terminal
// result and owns the WorkItem map. Lifecycle loads and unloads the model as
// the enabled flag changes. Both depend on domain interfaces, not concrete
// adapters.
package app
