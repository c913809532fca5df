// Package domain defines the MCP tool and resource surface for review
// sessions: typed inputs and results, tool schemas, and handlers that bind
// them to the session orchestrator.
package domain
