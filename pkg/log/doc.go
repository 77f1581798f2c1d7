/*
Package log provides structured logging for clusterlib using zerolog.

A single global Logger is configured once via Init(Config), producing
either JSON or human-readable console output at a configurable level.
WithComponent names a subsystem (dispatch thread, lock algorithm,
reference Repository); WithKey and WithKind scope a child logger to one
Notifyable's hierarchical key and variant, replacing the node/service/
task-ID child loggers this package was adapted from.
*/
package log
