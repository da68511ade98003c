package program

import "errors"

// Sentinel errors forming the input-side error taxonomy. Callers match them
// with errors.Is after unwrapping.
var (
	// ErrMalformedIR marks structural problems in the IR JSON document.
	ErrMalformedIR = errors.New("malformed IR")
	// ErrUnsupportedIR marks recognised but unsupported constructs, such as a
	// bit-slice on the left-hand side of an assignment.
	ErrUnsupportedIR = errors.New("unsupported IR")
	// ErrUnknownField marks a header path that cannot be resolved against the
	// declared types.
	ErrUnknownField = errors.New("unknown header field")
)
