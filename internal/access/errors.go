package access

import "errors"

var (
	ErrNotFound      = errors.New("access: not found")
	ErrConflict      = errors.New("access: resource conflict")
	ErrForbidden     = errors.New("access: forbidden")
	ErrImmutableRole = errors.New("access: system role is immutable")
	ErrInvalidInput  = errors.New("access: invalid input")
)
