package auth

import (
	"errors"

	"steward-backend/internal/pkg/validation"
)

var (
	ErrAddressRequired  = errors.New("Address is required")
	ErrInvalidAddress   = validation.ErrInvalidAddress
	ErrNonceMissing     = errors.New("Login nonce expired or not requested")
	ErrInvalidSignature = errors.New("Invalid signature")
	ErrSignerMismatch   = errors.New("Signature does not match address")
	ErrNotAuthenticated = errors.New("Not authenticated")
)
