package notify

import "errors"

var (
	errBufferFull       = errors.New("notification buffer full")
	errDispatcherClosed = errors.New("dispatcher closed")
)
