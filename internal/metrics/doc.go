// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Push channel connection state and reconnect attempts
//   - Event routing rates, parse errors, and duplicate drops
//   - Handler panic counts
//   - Reconciliation run outcomes and latencies
package metrics
