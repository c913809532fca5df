// Package domain holds the review session model: sessions, layered
// verification context, the issue ledger, round log, checkpoints, the
// convergence evaluator, and the arbiter heuristics. The package is pure
// state and rules; it performs no I/O and knows nothing about storage or
// transports.
package domain
