package engine

import "time"

// Config controls process engine behavior.
type Config struct {
	// StdoutStderrMaxBytes caps each captured stream. Zero selects the default; negative disables the cap.
	StdoutStderrMaxBytes int64 `yaml:"stdoutStderrMaxBytes"`
	// WaitDelay bounds how long Wait blocks on pipes held open by orphaned descendants.
	WaitDelay time.Duration `yaml:"waitDelay"`
}
