package chat

import "github.com/pkg/errors"

var (
	// ErrBusy is returned by Submit while a previous delivery is still
	// outstanding. The rejected call has no side effects.
	ErrBusy = errors.New("a delivery is already outstanding")

	// ErrEmptyMessage is returned by Submit for empty or whitespace-only
	// messages. No turn is created.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrClosed is returned by Submit after the controller has been closed.
	ErrClosed = errors.New("controller is closed")
)
