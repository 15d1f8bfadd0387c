package services

import "errors"

// Business rule failures. Handlers map these to specific 4xx responses;
// anything else surfaces as a transient failure.
var (
	ErrValidation             = errors.New("invalid input")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrMatchFull              = errors.New("match is full")
	ErrAlreadyJoined          = errors.New("already joined this match")
	ErrMatchNotJoinable       = errors.New("match is not open for joining")
	ErrMatchNotActive         = errors.New("match is not active")
	ErrNotEntrant             = errors.New("not an entrant of this match")
	ErrResultAlreadySubmitted = errors.New("result already submitted")
	ErrDuplicatePending       = errors.New("a pending request of this kind already exists")
	ErrOutsideWindow          = errors.New("withdrawals are closed at this hour")
	ErrBelowMinimum           = errors.New("amount is below the minimum")
	ErrInvalidTransition      = errors.New("request already resolved")
	ErrForbidden              = errors.New("forbidden")
	ErrNotVerified            = errors.New("match has unverified results")
)
