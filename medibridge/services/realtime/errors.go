package realtime

import "errors"

var (
	ErrUnauthenticated = errors.New("connection not authenticated")
	ErrInvalidFrame    = errors.New("invalid frame")
)
