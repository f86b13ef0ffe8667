package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrObsolete signals that the server no longer accepts the catalog the
	// client is holding. It is not a failure: the client reloads.
	ErrObsolete = errors.New("catalog is obsolete")

	// ErrConflictingCurrencies is the panic value of Cart.Total when items
	// are priced in a currency other than the cart's.
	ErrConflictingCurrencies = errors.New("conflicting currencies")
)

// MessageError carries a human readable reason supplied by the store server.
// It is shown to the user verbatim.
type MessageError struct {
	Message string
}

func (e *MessageError) Error() string {
	return e.Message
}

func NewMessageError(msg string) *MessageError {
	return &MessageError{Message: msg}
}

// IOError wraps transport, encoding and content type failures.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store io: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func NewIOError(op string, err error) *IOError {
	return &IOError{Op: op, Err: err}
}
