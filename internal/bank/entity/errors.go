package entity

import "errors"

var (
	ErrInvalidCredentials = errors.New("bank: invalid account id or pin")
	ErrInvalidTOTPCode    = errors.New("bank: invalid totp code")
	ErrLockedOut          = errors.New("bank: too many failed attempts")
	ErrInsufficientFunds  = errors.New("bank: insufficient funds")
	ErrInvalidAmount      = errors.New("bank: invalid amount")
	ErrReceiverNotFound   = errors.New("bank: receiver not found")
	ErrProtectedAccount   = errors.New("bank: account is protected")
	ErrStorage            = errors.New("bank: storage failure")

	ErrUnauthenticated = errors.New("bank: authentication required")
	ErrForbidden       = errors.New("bank: operation not allowed for this account")
	ErrSelfTransfer    = errors.New("bank: sender and receiver are the same account")
	ErrAccountExists   = errors.New("bank: account id already taken")
	ErrAccountNotFound = errors.New("bank: account not found")
	ErrBalanceNotZero  = errors.New("bank: balance must be zero")
	ErrAttemptResolved = errors.New("bank: login attempt already resolved")
)
