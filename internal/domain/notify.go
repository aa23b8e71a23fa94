package domain

import "context"

// Notifier pushes request updates to attached client views. Delivery is
// best-effort; the return value reports whether any listener took the update.
type Notifier interface {
	Notify(ctx context.Context, update RequestUpdate) bool
}
