package ffi

import "fmt"

// CreationError reports a native constructor that returned the null handle.
// Native carries the runtime's last-error text when one was available.
type CreationError struct {
	What   string
	Native string
}

func (e *CreationError) Error() string {
	if e.Native == "" {
		return fmt.Sprintf("failed to create %s", e.What)
	}
	return fmt.Sprintf("failed to create %s: %s", e.What, e.Native)
}

// CallError reports a native call that returned a non-zero status code.
type CallError struct {
	Op     string
	Code   int32
	Native string
}

func (e *CallError) Error() string {
	if e.Native == "" {
		return fmt.Sprintf("%s failed (code %d)", e.Op, e.Code)
	}
	return fmt.Sprintf("%s failed (code %d): %s", e.Op, e.Code, e.Native)
}

// creationErr builds a CreationError carrying the native last-error string.
func creationErr(what string) error {
	return &CreationError{What: what, Native: LastError()}
}

// callErr converts a native status code into an error, nil on success.
func callErr(op string, code int32) error {
	if code == 0 {
		return nil
	}
	return &CallError{Op: op, Code: code, Native: LastError()}
}
