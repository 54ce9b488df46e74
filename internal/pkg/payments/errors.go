package payments

import "errors"

var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrUnknownProvider    = errors.New("unknown payment provider")
	ErrVerifyUnsuccessful = errors.New("provider verification returned success=false")
	ErrMissingSignature   = errors.New("missing webhook signature")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
)
