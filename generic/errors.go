/*
errors.go - Centralized error types for the VIP engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch with errors.Is / errors.As; the API maps them to HTTP
  status codes.

ERROR CATEGORIES:
  1. Configuration errors - dates or store config unusable; evaluation of the
     client must stop, never fall back to "now" or to zero goals
  2. Reward outcomes - AlreadyConsumed is a normal result, not a failure
  3. Store errors - lookups and persistence

An empty ledger is not an error: zero orders yields zero spend.

SEE ALSO:
  - vip/resolver.go: raises InvalidDateConfigError
  - rewards/combo.go: AlreadyConsumed outcome
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDateConfig is returned when neither the client override nor
	// the store default yields a usable window start.
	ErrInvalidDateConfig = errors.New("invalid date configuration")

	// ErrMissingConfiguration is returned when the client or the store VIP
	// configuration is absent at evaluation time.
	ErrMissingConfiguration = errors.New("missing configuration")

	// ErrAlreadyConsumed reports that the combo for this cycle was used.
	ErrAlreadyConsumed = errors.New("combo already consumed")

	// ErrBelowMinimumOrder is returned when a combo is applied to an order
	// under the configured minimum value.
	ErrBelowMinimumOrder = errors.New("order below combo minimum value")

	// ErrClientNotFound is returned when a referenced client doesn't exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidLookback is returned for a negative history lookback.
	ErrInvalidLookback = errors.New("invalid lookback: must be >= 0")

	// ErrInvalidClient is returned for client records that cannot be evaluated.
	ErrInvalidClient = errors.New("invalid client record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateConfigError names the date fields that failed to resolve.
type InvalidDateConfigError struct {
	Field    string // "week" or "month"
	Override string
	Default  string
}

func (e *InvalidDateConfigError) Error() string {
	return fmt.Sprintf("invalid date configuration for %s window: override %q, default %q",
		e.Field, e.Override, e.Default)
}

func (e *InvalidDateConfigError) Unwrap() error {
	return ErrInvalidDateConfig
}

// ClientError ties a failure to the client it happened for. Ranking and
// history report these instead of aborting the whole run.
type ClientError struct {
	ClientID string
	Err      error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client %s: %v", e.ClientID, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigError returns true for errors that stem from bad dates or missing
// configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidDateConfig) ||
		errors.Is(err, ErrMissingConfiguration) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBelowMinimumOrder) ||
		errors.Is(err, ErrInvalidLookback) ||
		errors.Is(err, ErrInvalidClient)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound)
}
