package models

import (
	"errors"
)

// ErrorKind is the error taxonomy surfaced to the presentation layer.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindConnection     ErrorKind = "ConnectionError"
	ErrorKindConnectTimeout ErrorKind = "ConnectTimeout"
	ErrorKindJudgeTimeout   ErrorKind = "JudgeTimeout"
	ErrorKindJudgeError     ErrorKind = "JudgeError"
	ErrorKindHTTP           ErrorKind = "HttpError"
	ErrorKindUnknown        ErrorKind = "UnknownError"
)

var (
	// ErrGameNotFound is returned when the game does not exist or is not visible.
	ErrGameNotFound = errors.New("game not found")
	// ErrConnection is wrapped by push socket failures.
	ErrConnection = errors.New("push connection failed")
	// ErrConnectTimeout is returned when opening the push connection exceeds its timeout.
	ErrConnectTimeout = errors.New("push connection open timed out")
	// ErrJudgeTimeout is the terminal JudgeTimeout state.
	ErrJudgeTimeout = errors.New("judge timed out")
	// ErrJudgeError is the terminal JudgeError state.
	ErrJudgeError = errors.New("judge error")
)

// httpStatusError is implemented by transport errors carrying an HTTP status.
type httpStatusError interface {
	HTTPStatus() int
}

// Classify maps an error onto the taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var hse httpStatusError
	switch {
	case errors.Is(err, ErrConnectTimeout):
		return ErrorKindConnectTimeout
	case errors.Is(err, ErrConnection):
		return ErrorKindConnection
	case errors.Is(err, ErrJudgeTimeout):
		return ErrorKindJudgeTimeout
	case errors.Is(err, ErrJudgeError):
		return ErrorKindJudgeError
	case errors.As(err, &hse):
		return ErrorKindHTTP
	default:
		return ErrorKindUnknown
	}
}

// HTTPStatusOf returns the HTTP status carried by err, or 0.
func HTTPStatusOf(err error) int {
	var hse httpStatusError
	if errors.As(err, &hse) {
		return hse.HTTPStatus()
	}
	return 0
}
