package capture

import "errors"

var (
	// ErrSessionNotStarted is returned by TakePhoto before Start
	ErrSessionNotStarted = errors.New("capture session not started")
	// ErrSessionClosed is returned by operations on a closed session
	ErrSessionClosed = errors.New("capture session closed")
	// ErrCaptureInFlight is returned by SwitchDevice while an exposure is pending
	ErrCaptureInFlight = errors.New("capture in flight, device switch rejected")
)
