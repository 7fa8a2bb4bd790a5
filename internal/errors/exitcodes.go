package errors

const (
	ExitCodeSuccess = 0

	// ExitCodeRuntime indicates a general runtime error
	ExitCodeRuntime = 1

	// ExitCodeValidation indicates a usage error (follows bash convention)
	ExitCodeValidation = 2

	// ExitCodeRegistry indicates the skill registry could not be read
	ExitCodeRegistry = 3

	// ExitCodeBackend indicates the execution backend rejected a request
	ExitCodeBackend = 4

	// ExitCodeNetwork indicates a network connectivity error
	ExitCodeNetwork = 5

	// ExitCodeConfig indicates a configuration error
	ExitCodeConfig = 6
)

// ExitCode returns the process exit code for an error type.
func ExitCode(t ErrorType) int {
	switch t {
	case ErrorTypeValidation:
		return ExitCodeValidation
	case ErrorTypeRegistry:
		return ExitCodeRegistry
	case ErrorTypeBackend:
		return ExitCodeBackend
	case ErrorTypeNetwork:
		return ExitCodeNetwork
	case ErrorTypeConfig:
		return ExitCodeConfig
	default:
		return ExitCodeRuntime
	}
}

// ExitCodeFromError maps err to an exit code. Untyped errors are runtime
// errors.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	return ExitCode(TypeOf(err))
}
