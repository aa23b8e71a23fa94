// Package redis implements the durable store on Redis: the WorkItem hash,
// per-client view state, the enabled flag and its change channel. Client
// hooks add metrics and a circuit breaker to every command.
package redis
