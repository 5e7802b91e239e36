// Package pricingerr defines the failure taxonomy shared by the pricing engine.
//
// A ConfigurationError means a price cannot be shown at all (missing rate,
// policy or metal mapping). A SelectionError means the shopper picked a
// variation that cannot be sold and should choose again. A ConcurrencyError
// means checkout was aborted without writing anything and may be retried.
package pricingerr

import (
	"errors"
	"fmt"
)

var (
	ErrNoCurrentRate        = errors.New("no_current_rate")
	ErrMissingRate          = errors.New("missing_rate_for_metal")
	ErrUnsupportedMetal     = errors.New("unsupported_metal")
	ErrInvalidRate          = errors.New("invalid_rate")
	ErrMissingPolicy        = errors.New("missing_making_charge_policy")
	ErrInvalidPolicy        = errors.New("invalid_making_charge_policy")
	ErrInvalidProduct       = errors.New("invalid_product")
	ErrInvalidVariation     = errors.New("invalid_variation")
	ErrNegativeSubtotal     = errors.New("negative_subtotal")
	ErrVariationUnavailable = errors.New("variation_unavailable")
	ErrVariationOutOfStock  = errors.New("variation_out_of_stock")
	ErrUnknownVariation     = errors.New("unknown_variation")
	ErrUnknownGroup         = errors.New("unknown_variation_group")
	ErrTooManySelections    = errors.New("too_many_selections")
	ErrDuplicateSelection   = errors.New("duplicate_selection")
	ErrRateChanged          = errors.New("rate_changed_during_checkout")
	ErrCheckoutAborted      = errors.New("checkout_aborted")
)

type ConfigurationError struct {
	Reason string
	Err    error
}

func Configuration(err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...), Err: err}
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("pricing configuration: %v", e.Err)
	}
	return fmt.Sprintf("pricing configuration: %v: %s", e.Err, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

type SelectionError struct {
	Group       string
	VariationID string
	Err         error
}

func Selection(err error, group, variationID string) *SelectionError {
	return &SelectionError{Group: group, VariationID: variationID, Err: err}
}

func (e *SelectionError) Error() string {
	switch {
	case e.VariationID != "":
		return fmt.Sprintf("selection %s in group %q: %v", e.VariationID, e.Group, e.Err)
	case e.Group != "":
		return fmt.Sprintf("selection in group %q: %v", e.Group, e.Err)
	default:
		return fmt.Sprintf("selection: %v", e.Err)
	}
}

func (e *SelectionError) Unwrap() error { return e.Err }

// ConcurrencyError is always retryable: nothing was persisted.
type ConcurrencyError struct {
	Reason string
	Err    error
}

func Concurrency(err error, format string, args ...any) *ConcurrencyError {
	return &ConcurrencyError{Reason: fmt.Sprintf(format, args...), Err: err}
}

func (e *ConcurrencyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("concurrency: %v", e.Err)
	}
	return fmt.Sprintf("concurrency: %s: %v", e.Reason, e.Err)
}

func (e *ConcurrencyError) Unwrap() error { return e.Err }

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsSelection(err error) bool {
	var target *SelectionError
	return errors.As(err, &target)
}

func IsConcurrency(err error) bool {
	var target *ConcurrencyError
	return errors.As(err, &target)
}

func IsRetryable(err error) bool {
	return IsConcurrency(err)
}
