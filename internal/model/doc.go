// Package model defines the dashboard read-model types and the domain
// events that mutate them.
//
// Read-model types:
//   - PendingItem: a forum submission awaiting moderation
//   - CounterSnapshot: named aggregate counters
//   - PresenceEntry: a currently-online user
//   - ActivityEvent: a capped, most-recent-first activity log entry
//   - FlaggedReport: a content report awaiting review
//
// Events arrive on the push channel as {type, id, msg} envelopes and are
// decoded into a closed set of Kind values with typed payloads. Unknown
// types never reach the reducer.
package model
