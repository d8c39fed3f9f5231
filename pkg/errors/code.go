package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Execution module errors
const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Execution Module Errors (13000-13999) ==========

	// Request (13000-13099)
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003

	// Pipeline (13100-13199)
	ExecutionSystemError ErrorCode = 13101
	CompilationError     ErrorCode = 13102
	RuntimeError         ErrorCode = 13103
	TimeLimitExceeded    ErrorCode = 13104

	// Process & workspace (13200-13299)
	ToolNotFound        ErrorCode = 13200
	ProcessLaunchFailed ErrorCode = 13201
	ExecutionCancelled  ErrorCode = 13202
	WorkspaceError      ErrorCode = 13203
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Execution - Request
	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",

	// Execution - Pipeline
	ExecutionSystemError: "Execution system error",
	CompilationError:     "Compilation error",
	RuntimeError:         "Runtime error",
	TimeLimitExceeded:    "Time limit exceeded",

	// Execution - Process & workspace
	ToolNotFound:        "Required tool is not installed",
	ProcessLaunchFailed: "Failed to launch process",
	ExecutionCancelled:  "Execution was cancelled",
	WorkspaceError:      "Workspace operation failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound:
		return 404
	case c == CodeTooLarge:
		return 413
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == ToolNotFound:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
