package finding

import "errors"

// Sentinel errors for dispatch failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrTimeout indicates the target did not respond within the
	// configured per-request deadline.
	ErrTimeout = errors.New("finding: timeout")

	// ErrTargetUnreachable indicates the target host could not be
	// reached (DNS failure, connection refused, etc.).
	ErrTargetUnreachable = errors.New("finding: target unreachable")

	// ErrVerification indicates a predicate failed or panicked while
	// inspecting a response. The attempt is inconclusive, not a crash.
	ErrVerification = errors.New("finding: verification failed")
)
