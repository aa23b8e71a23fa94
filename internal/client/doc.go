// Package client implements the client view's session controller: it
// restores the persisted view, reconciles it against the coordinator's
// records, submits images and drives model loading with a bounded retry.
//
// A Controller lives for one activation of the client view. Everything
// that must survive between activations goes through the store.
package client
