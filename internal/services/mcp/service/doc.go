// Package service wires protocol transport to the review orchestrator.
//
// It is the transport adapter layer: the package knows how to run MCP over
// stdio or HTTP and delegates review semantics to the domain handlers in the
// MCP domain package.
package service
