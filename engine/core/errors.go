package core

import "net/http"

// ErrorKind classifies failures for transport mapping.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

func (k ErrorKind) String() string {
	return string(k)
}

// HTTPStatus maps the kind onto a response code. Conflicts surface as 400.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
