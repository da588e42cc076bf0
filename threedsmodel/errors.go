package threedsmodel

import "errors"

var (
	// ErrConfiguration marks missing required protocol fields or bad setup. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport marks a sub-flow surface that failed to load.
	ErrTransport = errors.New("transport error")
	// ErrNetwork marks a failed fingerprint submission or event channel.
	ErrNetwork = errors.New("network error")
	// ErrProtocolParse marks an event message that could not be decoded.
	ErrProtocolParse = errors.New("protocol parse error")
	// ErrCancelled marks a session stopped by timeout or by the caller before a terminal state.
	ErrCancelled = errors.New("authentication cancelled")
)

// ErrSessionTimeout is the cancellation cause recorded when the session deadline passes.
var ErrSessionTimeout = errors.New("session timeout")
