package auth

import "errors"

var (
	ErrEmptySubject       = errors.New("subject is required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAccessToken = errors.New("invalid access token")
)
