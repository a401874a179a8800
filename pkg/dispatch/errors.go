package dispatch

import "errors"

var (
	ErrQueueNil       = errors.New("dispatch: queue cannot be nil")
	ErrNoSenders      = errors.New("dispatch: no senders registered")
	ErrInvalidSender  = errors.New("dispatch: sender has an unknown channel")
	ErrAlreadyStarted = errors.New("dispatch: worker already started")
	ErrNotStarted     = errors.New("dispatch: worker not started")
	ErrSenderPanic    = errors.New("dispatch: sender panicked")
)
