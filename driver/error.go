package driver

import "fmt"

// NativeError reports a native API failure verbatim. The foreign call
// surface never fails in any other way: Code carries the backend's error
// code untranslated so callers can match it against native documentation.
type NativeError struct {
	// Op is the native call that failed, e.g. "vkQueueSubmit".
	Op string

	// Code is the backend's error code, unmodified.
	Code int32
}

// Error implements the error interface.
func (e *NativeError) Error() string {
	return fmt.Sprintf("driver: %s failed with native error %d", e.Op, e.Code)
}

// Errorf wraps a native failure as a *NativeError.
func Errorf(op string, code int32) error {
	return &NativeError{Op: op, Code: code}
}
