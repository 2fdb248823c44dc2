package pipeline

import "errors"

var (
	ErrEmptyContent = errors.New("message content is empty")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrPersistence  = errors.New("failed to persist message")
	ErrPoolClosed   = errors.New("worker pool is shut down")
	ErrQueueFull    = errors.New("worker pool queue is full")
)
