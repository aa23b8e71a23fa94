// Package websocket is the push side of the message channel: a hub that
// sends requestUpdate frames to every attached client view.
package websocket
