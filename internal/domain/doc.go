// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (session.go, workitem.go, clientview.go, store.go, ...)
// hold shared types and the contracts between the coordinator, the client view
// and their adapters. No implementation code - just contracts.
package domain
