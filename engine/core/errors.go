package core

import (
	"errors"
)

var (
	ErrNotInitialized = errors.New("engine is not initialized")
	ErrQueueFull      = errors.New("event queue is full")
)
