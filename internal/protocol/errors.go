package protocol

import (
	"errors"
	"fmt"
)

// Code is the machine readable error code clients translate for display.
type Code string

const (
	CodeParseError      Code = "PARSE_ERROR"
	CodeRoomNotFound    Code = "ROOM_NOT_FOUND"
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodePlayerNotFound  Code = "PLAYER_NOT_FOUND"
	CodeHostQuit        Code = "HOST_QUIT"
	CodeGameClosed      Code = "GAME_CLOSED"
	CodeImageTooLarge   Code = "IMAGE_TOO_LARGE"
	CodeUnknownFileType Code = "UNKNOWN_FILE_TYPE"
	CodeServerError     Code = "SERVER_ERROR"
)

// Error is returned by handlers and reported to the originating connection.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrParse           = &Error{Code: CodeParseError}
	ErrRoomNotFound    = &Error{Code: CodeRoomNotFound}
	ErrSessionNotFound = &Error{Code: CodeSessionNotFound}
	ErrPlayerNotFound  = &Error{Code: CodePlayerNotFound}
	ErrImageTooLarge   = &Error{Code: CodeImageTooLarge}
	ErrUnknownFileType = &Error{Code: CodeUnknownFileType}
)

// Errorf builds an *Error carrying a human readable message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorFrom classifies err. Anything that is not already a protocol error is
// reported as an unclassified server error with its text as the message.
func ErrorFrom(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Code: CodeServerError, Message: err.Error()}
}
