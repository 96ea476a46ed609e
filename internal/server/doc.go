// Package server owns the long-running triage service: the ServerContext
// that constructs and tears down the adapters, store, and engine, the
// dedicated Prometheus metrics server, and the health check endpoints.
//
// The ServerContext builds the system in a fixed order (mailbox, then
// classifier, then calendar, then state load) so a failure surfaces
// before any state is touched, and its Shutdown flushes a final state
// snapshot before releasing the store.
package server
