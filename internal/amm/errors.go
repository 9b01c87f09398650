package amm

import "errors"

// Kind classifies a failure so callers can react without matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInvariant
	KindTransfer
	KindSlippage
	KindOverflow
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvariant:
		return "invariant"
	case KindTransfer:
		return "transfer"
	case KindSlippage:
		return "slippage"
	case KindOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel error. Compare with errors.Is.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// AsSlippage reclassifies a sentinel as a caller-bound violation while
// keeping it matchable with errors.Is.
func AsSlippage(err *Error) error {
	return &Error{Kind: KindSlippage, msg: err.msg, err: err}
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

var (
	ErrIdenticalAssets = newError(KindValidation, "identical assets")
	ErrZeroAddress     = newError(KindValidation, "zero address")
	ErrPoolExists      = newError(KindValidation, "pool exists")
	ErrPoolNotFound    = newError(KindValidation, "pool not found")
	ErrInvalidPath     = newError(KindValidation, "invalid path")
	ErrInvalidTo       = newError(KindValidation, "invalid to")

	ErrInsufficientAmount       = newError(KindValidation, "insufficient amount")
	ErrInsufficientInputAmount  = newError(KindValidation, "insufficient input amount")
	ErrInsufficientOutputAmount = newError(KindValidation, "insufficient output amount")

	ErrInsufficientLiquidity       = newError(KindInvariant, "insufficient liquidity")
	ErrInsufficientLiquidityMinted = newError(KindInvariant, "insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = newError(KindInvariant, "insufficient liquidity burned")
	ErrK                           = newError(KindInvariant, "k")

	ErrTransferFailed = newError(KindTransfer, "transfer failed")

	ErrExpired              = newError(KindSlippage, "expired")
	ErrInsufficientAAmount  = newError(KindSlippage, "insufficient a amount")
	ErrInsufficientBAmount  = newError(KindSlippage, "insufficient b amount")
	ErrExcessiveInputAmount = newError(KindSlippage, "excessive input amount")

	ErrOverflow = newError(KindOverflow, "overflow")
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
