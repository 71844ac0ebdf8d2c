package game

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeValidation marks a malformed or undecodable payload.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeNotAuthorized marks a command issued by the wrong identity.
	CodeNotAuthorized Code = "NOT_AUTHORIZED"
	// CodeInvalidStateTransition marks a command not valid in the current state.
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodePlayerNotActive        Code = "PLAYER_NOT_ACTIVE"
	CodeCardNotInHand          Code = "CARD_NOT_IN_HAND"
	CodeDuplicateName          Code = "DUPLICATE_NAME"
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionBusy            Code = "SESSION_BUSY"
	// CodeInternal marks a recovered invariant violation inside a session.
	CodeInternal Code = "INTERNAL"
)

var (
	ErrValidation             = New(CodeValidation, "invalid payload")
	ErrNotAuthorized          = New(CodeNotAuthorized, "not authorized")
	ErrInvalidStateTransition = New(CodeInvalidStateTransition, "invalid state for command")
	ErrPlayerNotActive        = New(CodePlayerNotActive, "player is not active")
	ErrCardNotInHand          = New(CodeCardNotInHand, "card not in hand")
	ErrDuplicateName          = New(CodeDuplicateName, "name already taken")
	ErrSessionNotFound        = New(CodeSessionNotFound, "session not found")
	ErrSessionBusy            = New(CodeSessionBusy, "session busy")
	ErrInternal               = New(CodeInternal, "internal error")
)

// Error is the domain error returned by every rejected command.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
