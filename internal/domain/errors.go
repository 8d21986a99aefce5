package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrTransport         = errors.New("transport error")
	ErrDecode            = errors.New("decode error")
	ErrDomain            = errors.New("value outside model domain")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrAlreadyRunning    = errors.New("stream already running")
)
