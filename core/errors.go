package core

import "errors"

var (
	ErrSignatureMismatch    = errors.New("signature does not match address")
	ErrMalformedSignature   = errors.New("malformed signature")
	ErrInvalidAddress       = errors.New("invalid ethereum address")
	ErrAddressNotAuthorized = errors.New("address is not authorized to log in")
	ErrAlreadyLinked        = errors.New("address is already linked")
	ErrInvalidNetwork       = errors.New("unknown network")
	ErrAddressNotFound      = errors.New("address is not linked to this account")
	ErrLastAuthAddress      = errors.New("cannot disable the last authorized address")
	ErrCannotDisableCurrent = errors.New("cannot disable the address of the current session")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidProof         = errors.New("authorization proof must sign the address authorization message")

	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionRevoked     = errors.New("session has been revoked")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidChallenge   = errors.New("invalid challenge")
	ErrChallengeUsed      = errors.New("challenge has already been used")
	ErrInvalidSyncRequest = errors.New("unknown sync kind")
)
