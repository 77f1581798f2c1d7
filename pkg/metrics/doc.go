/*
Package metrics exposes clusterlib's Prometheus instrumentation:
lock-wait latency, dispatch queue depth, semantic events fanned out to
clients, synchronize() round-trip latency, live cached Notifyable
counts, leader-election outcomes, and the reference Repository's Raft
leadership/apply-latency gauges.

All metrics are registered at package init and exposed via Handler(),
the same construction style (package-level prometheus.NewXVec literals,
MustRegister in init) as the repo this package was grounded on. The
Timer helper times an operation and records it to a histogram, with or
without labels.
*/
package metrics
