// Package api provides the REST client for the dashboard backend: the
// snapshot endpoints consumed by reconciliation and the moderation action
// endpoints. Action responses never mutate local state; state changes
// arrive through the push channel.
package api
