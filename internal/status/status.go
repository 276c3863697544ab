package status

import "errors"

var (
	ErrNotFound               = errors.New("status: entity not found")
	ErrUserNotFound           = errors.New("status: user not found")
	ErrInsufficientInventory  = errors.New("status: insufficient inventory")
	ErrInsufficientPoints     = errors.New("status: insufficient points")
	ErrInvalidVoucher         = errors.New("status: invalid voucher")
	ErrInvalidTicketType      = errors.New("status: invalid ticket type")
	ErrInvalidStateTransition = errors.New("status: invalid state transition")
	ErrMissingProof           = errors.New("status: missing payment proof")
	ErrAlreadyReferred        = errors.New("status: user already referred")
	ErrSelfReferral           = errors.New("status: self referral not allowed")
	ErrInvalidReferralCode    = errors.New("status: invalid referral code")
	ErrEmailTaken             = errors.New("status: email already registered")
	ErrForbidden              = errors.New("status: forbidden")
)
