package domain

import "errors"

var (
	ErrZoneNotFound       = errors.New("zone not found")
	ErrSessionExists      = errors.New("participant already has an active session")
	ErrParticipantOffline = errors.New("participant offline")
	ErrAccountUnavailable = errors.New("funds account unavailable")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrRelocationFailed   = errors.New("relocation failed")
	ErrRegionUnresolvable = errors.New("region unresolvable")
	ErrCorruptState       = errors.New("corrupt persisted state")
)
