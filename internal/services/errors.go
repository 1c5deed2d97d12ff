package services

import (
	"errors"

	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"gorm.io/gorm"
)

// Common service errors
var (
	ErrNotFound            = errors.New("record not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInactiveAccount     = errors.New("account is inactive or suspended")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidPercentage   = errors.New("commission percentage must be between 0 and 100")
	ErrNotEligible         = errors.New("income is not yet eligible for approval")
	ErrAlreadyDecided      = errors.New("income has already been approved or rejected")
	ErrMissingReason       = errors.New("a rejection reason is required")
	ErrInvalidPayment      = errors.New("paid amount must be greater than zero")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotInDownline       = errors.New("buyer is not in the seller's downline")
	ErrBalanceInvariant    = errors.New("leg balance invariant violated")
	ErrInvalidAmount       = models.ErrInvalidAmount
	ErrInvalidLeg          = models.ErrInvalidLeg
	ErrInsufficientBalance = models.ErrInsufficientBalance
	ErrPositionTaken       = repository.ErrPositionTaken
	ErrDuplicateEmail      = repository.ErrDuplicateEmail
)

// notFound maps a missing row to ErrNotFound and passes other errors through
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}
