package scenario

import (
	"fmt"
	"log"
)

// AssertionMode controls whether expectation mismatches abort a scenario.
type AssertionMode string

const (
	// AssertionStrict aborts the scenario on the first failed expectation.
	AssertionStrict AssertionMode = "strict"
	// AssertionLogOnly logs failed expectations and keeps running.
	AssertionLogOnly AssertionMode = "log-only"
)

// Assertions reports expectation outcomes according to the configured mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf reports a structural failure. Structural failures abort the scenario
// in every mode: the script itself is broken, not an expectation.
func (a Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports an expectation mismatch. In log-only mode the mismatch is
// logged and execution continues.
func (a Assertions) Assertf(format string, args ...any) error {
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("assertion failed (log-only): "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}
