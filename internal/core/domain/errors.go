package domain

import "errors"

var (
	ErrInvalidPayload     = errors.New("invalid event payload")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionExists   = errors.New("connection request already exists")
	ErrMessageNotFound    = errors.New("message not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
