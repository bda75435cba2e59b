package bridge

import "errors"

// Load failures are fatal for the session and identifiable by the caller.
var (
	// ErrCoreNotFound means the core module file could not be read.
	ErrCoreNotFound = errors.New("core module not found")
	// ErrAPIVersion means the core declares an API version other than 1.
	ErrAPIVersion = errors.New("core API version mismatch")
	// ErrMissingExport means the core lacks a required entry point.
	ErrMissingExport = errors.New("core missing required export")
	// ErrGameRejected means the core's load-game entry returned false.
	ErrGameRejected = errors.New("core rejected game")
)

var (
	// ErrBadState means the operation is not valid in the bridge's
	// current lifecycle state.
	ErrBadState = errors.New("invalid bridge state")
	// ErrNotRunning is returned by StepFrame once the session has been
	// stopped or shut down.
	ErrNotRunning = errors.New("core not running")
	// ErrNoRegion means the core exposes no memory region of that kind.
	ErrNoRegion = errors.New("memory region not exposed by core")
	// ErrSerializeFailed wraps a false return from the core's
	// serialize/unserialize entry points. Persistence treats it as soft.
	ErrSerializeFailed = errors.New("core serialization failed")
)
