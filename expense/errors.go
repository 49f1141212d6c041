/*
errors.go - Centralized error types for the expense engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Driver packages wrap these with additional context where useful.

ERROR CATEGORIES:
  1. Configuration errors - Malformed rules; logged and skipped, never
     fatal to a generation batch
  2. Store errors - Persistence failures; propagated to the caller

USAGE:
  if errors.Is(err, expense.ErrBadRuleConfig) {
      log.Printf("skipping rule: %v", err)
      continue
  }
*/
package expense

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBadRuleConfig is returned when a rule's configuration is
	// internally inconsistent (conflicting targets, wrong cadence for
	// the operation). Drivers skip such rules and continue the batch.
	ErrBadRuleConfig = errors.New("bad rule configuration")

	// ErrUnboundedRule is returned for generic recurring rules with
	// neither a start date nor a prior-days limit, which would
	// enumerate ticks without a lower bound.
	ErrUnboundedRule = errors.New("rule has no lower generation bound")

	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrDuplicatePeriod is returned when an item for the exact
	// (rule, periodStart, periodEnd) already exists. Expected on
	// concurrent generation; safe to ignore.
	ErrDuplicatePeriod = errors.New("duplicate period item")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError describes why a specific rule cannot be processed.
type ConfigError struct {
	RuleID RuleID
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.RuleID, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrBadRuleConfig }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfig reports whether err is a recoverable configuration problem
// (skip the rule, keep the batch going).
func IsConfig(err error) bool {
	return errors.Is(err, ErrBadRuleConfig) || errors.Is(err, ErrUnboundedRule)
}

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}
