package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies a failure for the user and for the exit code.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeValidation is a bad flag or argument.
	ErrorTypeValidation
	// ErrorTypeConfig is a missing or malformed setting.
	ErrorTypeConfig
	// ErrorTypeNetwork is an unreachable RPC endpoint or listener failure.
	ErrorTypeNetwork
	// ErrorTypeRegistry is a failed or undecodable registry read.
	ErrorTypeRegistry
	// ErrorTypeBackend is an error reported by the execution backend.
	ErrorTypeBackend
	ErrorTypeRuntime
)

// BridgeError carries a type and optional hint text alongside an error.
type BridgeError struct {
	Type ErrorType
	Err  error
	Hint string
}

func (e *BridgeError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%v\n%s", e.Err, e.Hint)
	}
	return e.Err.Error()
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, err error, hint string) *BridgeError {
	return &BridgeError{Type: t, Err: err, Hint: hint}
}

// ValidationError reports invalid command usage.
func ValidationError(err error, hint string) *BridgeError {
	return newError(ErrorTypeValidation, err, hint)
}

// ConfigError reports an invalid configuration value.
func ConfigError(err error) *BridgeError {
	return newError(ErrorTypeConfig, err, "")
}

// ConfigErrorWithHint is ConfigError with a remediation hint.
func ConfigErrorWithHint(err error, hint string) *BridgeError {
	return newError(ErrorTypeConfig, err, hint)
}

// NetworkError reports a connectivity failure.
func NetworkError(err error) *BridgeError {
	return newError(ErrorTypeNetwork, err, "")
}

// NetworkErrorWithHint is NetworkError with a remediation hint.
func NetworkErrorWithHint(err error, hint string) *BridgeError {
	return newError(ErrorTypeNetwork, err, hint)
}

// RegistryError reports a failed registry read.
func RegistryError(err error) *BridgeError {
	return newError(ErrorTypeRegistry, err, "")
}

// BackendError reports a failure returned by the execution backend.
func BackendError(err error) *BridgeError {
	return newError(ErrorTypeBackend, err, "")
}

// RuntimeError reports anything else.
func RuntimeError(err error) *BridgeError {
	return newError(ErrorTypeRuntime, err, "")
}

// TypeOf returns the type of the first BridgeError in err's chain.
func TypeOf(err error) ErrorType {
	var be *BridgeError
	if stderrors.As(err, &be) {
		return be.Type
	}
	return ErrorTypeUnknown
}
