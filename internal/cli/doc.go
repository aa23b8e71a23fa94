// Package cli implements visionctl, the client view. Each invocation is one
// activation of a client.Controller: it restores the saved view, talks to the
// coordinator over its message channel and saves the view again.
package cli
