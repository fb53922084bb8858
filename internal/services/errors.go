package services

import "errors"

// Service-level error taxonomy. HTTP handlers map these to status codes;
// the WebSocket handler logs and drops.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrDuplicateInvitation = errors.New("invitation already sent")
	ErrNotPartnered        = errors.New("users are not partners")
	ErrValidation          = errors.New("invalid request")
)
