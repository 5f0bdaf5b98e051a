package cell

import "fmt"

// DecodeError reports malformed cell bytes: a bad length, an out-of-range
// discriminant, or a field that cannot be parsed. Scanners drop the offending
// cell and keep going; a DecodeError is never fatal.
type DecodeError struct {
	Kind   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Kind, e.Reason)
}

func decodeErrf(kind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	_, ok := err.(*DecodeError)
	return ok
}
