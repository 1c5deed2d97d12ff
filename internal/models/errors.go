package models

import "errors"

// Balance and amount errors raised by the leg balance arithmetic
var (
	ErrInvalidAmount       = errors.New("amount must be a non-negative value")
	ErrInvalidLeg          = errors.New("leg must be left or right")
	ErrInsufficientBalance = errors.New("amount exceeds available leg balance")
)
