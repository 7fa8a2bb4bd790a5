package errors

import (
	stderrors "errors"
	"strings"
)

var prefixes = map[ErrorType]string{
	ErrorTypeValidation: "✗ Validation Error: ",
	ErrorTypeConfig:     "✗ Configuration Error: ",
	ErrorTypeNetwork:    "✗ Network Error: ",
	ErrorTypeRegistry:   "✗ Registry Error: ",
	ErrorTypeBackend:    "✗ Backend Error: ",
}

// Format renders err for the terminal, with a type prefix and any hint on
// its own paragraph.
func Format(err error) string {
	if err == nil {
		return ""
	}

	var be *BridgeError
	if !stderrors.As(err, &be) {
		return "✗ Error: " + err.Error()
	}

	prefix, ok := prefixes[be.Type]
	if !ok {
		prefix = "✗ Error: "
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(be.Err.Error())
	if be.Hint != "" {
		sb.WriteString("\n\n")
		sb.WriteString(be.Hint)
	}
	return sb.String()
}
