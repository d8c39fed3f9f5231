package contextkey

// Key is a distinct type to avoid context key collisions across packages.
type Key string

const (
	TraceID   Key = "trace_id"
	RequestID Key = "request_id"
	UserID    Key = "user_id"
	// Language is set by the orchestrator for the duration of one execution.
	Language Key = "language"
)
