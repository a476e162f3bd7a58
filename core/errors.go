package core

import "errors"

var (
	ErrNoAccountsOffered    = errors.New("no accounts offered by wallet session")
	ErrSignatureMismatch    = errors.New("signature does not match address")
	ErrSigningRequestFailed = errors.New("signing request failed")
	ErrPairingTimeout       = errors.New("pairing timed out")
	ErrNoNonce              = errors.New("no nonce issued for user")

	ErrAlreadyPending       = errors.New("pairing already pending")
	ErrNoAttempt            = errors.New("no pairing attempt for user")
	ErrNonceNotFound        = errors.New("nonce not found")
	ErrStoreOperationFailed = errors.New("store operation failed")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidToken         = errors.New("invalid token")
)
