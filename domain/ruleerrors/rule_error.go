package ruleerrors

import (
	"github.com/pkg/errors"
)

// These constants identify the specific rule the settlement engine rejected
// a call for. Every rejection leaves the ledger state untouched; callers
// retry with corrected input or wait out a timing condition.
var (
	// ErrMalformedTransaction indicates transaction bytes that do not
	// decode to a canonical transaction, or a signature bundle of the
	// wrong shape.
	ErrMalformedTransaction = newRuleError("ErrMalformedTransaction")

	// ErrCapacityExceeded indicates a leaf set larger than the fixed
	// tree can hold, or a deposit-slot counter that ran out of room in
	// the current child-block epoch.
	ErrCapacityExceeded = newRuleError("ErrCapacityExceeded")

	// ErrInclusionProofFailure indicates a membership proof that does
	// not recompute the committed digest of the block it claims
	// inclusion in.
	ErrInclusionProofFailure = newRuleError("ErrInclusionProofFailure")

	// ErrAuthorizationFailure indicates a signature that does not
	// recover to the claimed owner, a claimed input owner that does not
	// match the referenced output, or a caller that is not entitled to
	// the operation.
	ErrAuthorizationFailure = newRuleError("ErrAuthorizationFailure")

	// ErrInvalidSignature indicates a structurally invalid signature:
	// wrong length or a point that does not recover at all.
	ErrInvalidSignature = newRuleError("ErrInvalidSignature")

	// ErrPrematureAction indicates an exit that references an input
	// whose containing block has not yet reached the required
	// confirmation margin.
	ErrPrematureAction = newRuleError("ErrPrematureAction")

	// ErrConflict indicates a live exit already exists at the target
	// position.
	ErrConflict = newRuleError("ErrConflict")

	// ErrOutOfOrder indicates a block submitted to a slot that is not
	// the next expected child-block slot.
	ErrOutOfOrder = newRuleError("ErrOutOfOrder")

	// ErrNotFound indicates a challenge or query against a position
	// with no live record, or a reference to a block slot that was
	// never filled.
	ErrNotFound = newRuleError("ErrNotFound")

	// ErrPositionOutOfRange indicates a UTXO position whose sub-fields
	// do not fit the packed integer scheme.
	ErrPositionOutOfRange = newRuleError("ErrPositionOutOfRange")
)

// RuleError identifies a settlement-rule violation. It is used to indicate
// that processing of a call failed due to one of the validation rules
// rather than an internal failure. Callers check for specific rules with
// errors.Is against the sentinel values above.
type RuleError struct {
	message string
	inner   error
}

func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface.
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors Cause interface.
func (e RuleError) Cause() error {
	return e.inner
}

// Is lets errors.Is match a wrapped, contextualized RuleError against its
// bare sentinel value.
func (e RuleError) Is(target error) bool {
	t, ok := target.(RuleError)
	return ok && t.message == e.message
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// Errorf wraps the given sentinel with formatted context, keeping the
// sentinel matchable via errors.Is, and records the caller's stack.
func Errorf(sentinel RuleError, format string, args ...interface{}) error {
	return errors.WithStack(RuleError{
		message: sentinel.message,
		inner:   errors.Errorf(format, args...),
	})
}
