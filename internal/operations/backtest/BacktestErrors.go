package backtest

import (
	"fmt"
	"time"
)

// ConfigurationError is fatal at construction: the run never starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// DataError is fatal and aborts the in-progress run: a malformed bar or a
// non-monotonic timestamp in a symbol stream.
type DataError struct {
	Symbol    string
	Timestamp time.Time
	Reason    string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad bar data for %s at %s: %s",
		e.Symbol, e.Timestamp.UTC().Format(time.RFC3339), e.Reason)
}

// InvariantViolationError signals a logic bug inside the engine itself, such
// as an entry slipping past a denied admission. It aborts the run loudly
// rather than silently corrupting results.
type InvariantViolationError struct {
	Symbol    string
	Timestamp time.Time
	Reason    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("execution invariant violated for %s at %s: %s",
		e.Symbol, e.Timestamp.UTC().Format(time.RFC3339), e.Reason)
}
