// Package metrics records build and serving metrics for navindex.
//
// Components take a Recorder and default to NoopRecorder, so metrics never
// need nil checks at call sites. When the server is configured with a
// metrics path the CLI injects a PrometheusRecorder backed by its own
// registry and exposes it through HTTPHandler.
package metrics
