package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidPolicy = errors.New("invalid lifecycle policy")
)
