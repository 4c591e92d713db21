package ruleerrors

import (
	"testing"

	"github.com/pkg/errors"
)

func TestErrorfMatchesSentinel(t *testing.T) {
	err := Errorf(ErrConflict, "an exit already targets position %d", 42)

	if !errors.Is(err, ErrConflict) {
		t.Fatalf("errors.Is did not match the wrapped sentinel: %s", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is matched a different sentinel: %s", err)
	}

	var ruleErr RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("errors.As did not extract a RuleError from %s", err)
	}
	if !errors.Is(ruleErr, ErrConflict) {
		t.Fatalf("extracted RuleError does not match its sentinel: %s", ruleErr)
	}
}

func TestErrorfKeepsContext(t *testing.T) {
	err := Errorf(ErrOutOfOrder, "block %d submitted, expected %d", 3000, 2000)

	expected := "ErrOutOfOrder: block 3000 submitted, expected 2000"
	if err.Error() != expected {
		t.Fatalf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestWrappedSentinelStillMatches(t *testing.T) {
	err := errors.Wrap(Errorf(ErrPrematureAction, "input block 2000 not yet exitable"),
		"starting exit")

	if !errors.Is(err, ErrPrematureAction) {
		t.Fatalf("errors.Is did not match through an extra Wrap layer: %s", err)
	}
}
