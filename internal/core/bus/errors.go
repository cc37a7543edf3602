package bus

import (
	"errors"
	"fmt"
)

var (
	ErrHandlerNotRegistered     = errors.New("handler not registered")
	ErrHandlerAlreadyRegistered = errors.New("handler already registered")
)

// HandlerError wraps any failure raised by a handler, including recovered panics.
type HandlerError struct {
	MessageType string
	Handler     string
	Err         error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on %s: %v", e.Handler, e.MessageType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
