package gpu

import "errors"

// ErrStart indicates the telemetry subprocess could not be launched.
var ErrStart = errors.New("gpu: start telemetry")
