// Package connection implements the push-channel Connection Manager.
//
// The Connection Manager:
//   - Owns the single logical WebSocket connection for a dashboard session
//   - Handles the authenticated handshake and bounded, fixed-delay reconnection
//   - Tracks room membership and replays it after every reconnect
//   - Publishes state transitions to dependents (router, reconciler, UI)
//   - Forwards raw messages to the Event Router
package connection
