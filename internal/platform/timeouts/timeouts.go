// Package timeouts defines shared timeout constants used across commands.
// Centralizing these values prevents drift between entry points and makes
// the durations discoverable.
package timeouts

import "time"

// StoragePing caps the wait time when verifying a storage connection at
// startup.
const StoragePing = 2 * time.Second

// ReadHeader limits how long the HTTP transport waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second

// ScenarioStep caps the time allowed for a single scenario step.
const ScenarioStep = 10 * time.Second

// Maintenance caps a full maintenance run over the session store.
const Maintenance = 10 * time.Minute
