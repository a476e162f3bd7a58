package core

import "errors"

// Outcome is the verification result of one pairing attempt.
// A nil Err means the wallet proved ownership of Address.
type Outcome struct {
	Address string
	Err     error
}

// Succeeded returns a successful outcome for address.
func Succeeded(address string) Outcome {
	return Outcome{Address: address}
}

// Failed returns a failed outcome carrying err.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Describe returns the user-facing text for a failure.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoAccountsOffered):
		return "Failed to get any accounts"
	case errors.Is(err, ErrSignatureMismatch):
		return "Signature verification error, you must verify the signature only with your account"
	case errors.Is(err, ErrPairingTimeout):
		return "Wallet verification time expired, please try again"
	case errors.Is(err, ErrSigningRequestFailed):
		return "Failed to sign with your wallet"
	default:
		return "Unknown error occurred"
	}
}
