package usecase

import "errors"

var (
	// ErrEmptyResponse is returned by the model transport when a completion has no choices
	ErrEmptyResponse = errors.New("no response choices")

	// ErrUnknownCommand is returned when dispatching a name missing from the registry
	ErrUnknownCommand = errors.New("unknown command")
)
