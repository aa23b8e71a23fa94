// Package channel is the client side of the message channel: JSON requests
// to the coordinator's /api/messages endpoint and a websocket listener for
// pushed request updates.
package channel
