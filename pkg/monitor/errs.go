package monitor

import "errors"

var (
	// ErrProcessNotFound indicates the target PID does not exist at Init.
	ErrProcessNotFound = errors.New("monitor: process not found")

	// ErrIdentityUnreadable indicates the start time of the target could not be read.
	ErrIdentityUnreadable = errors.New("monitor: identity unreadable")

	// ErrGPUStart indicates the GPU telemetry reader failed to start.
	ErrGPUStart = errors.New("monitor: gpu reader start")

	// ErrAlreadyInitialized indicates Init was called on a session past StateInit.
	ErrAlreadyInitialized = errors.New("monitor: already initialized")
)
