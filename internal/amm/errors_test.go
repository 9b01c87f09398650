package amm

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("swap hop 1: %w", ErrK)
	if !errors.Is(err, ErrK) {
		t.Fatalf("expected errors.Is to match ErrK")
	}
	if got := KindOf(err); got != KindInvariant {
		t.Fatalf("kind mismatch: %s", got)
	}
	if got := KindOf(errors.New("other")); got != KindUnknown {
		t.Fatalf("expected unknown kind, got %s", got)
	}
}

func TestAsSlippage(t *testing.T) {
	err := fmt.Errorf("swap exact in: %w", AsSlippage(ErrInsufficientOutputAmount))
	if !errors.Is(err, ErrInsufficientOutputAmount) {
		t.Fatalf("expected sentinel to survive reclassification")
	}
	if got := KindOf(err); got != KindSlippage {
		t.Fatalf("kind mismatch: %s", got)
	}
	if KindOf(ErrInsufficientOutputAmount) != KindValidation {
		t.Fatalf("sentinel kind must not change")
	}
	if err.Error() != "swap exact in: insufficient output amount" {
		t.Fatalf("message mismatch: %s", err.Error())
	}
}
