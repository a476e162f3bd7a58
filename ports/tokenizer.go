package ports

import "github.com/layer-3/walletlink/core"

// Tokenizer converts between attestations and signed tokens
type Tokenizer interface {
	AttestationToToken(attestation *core.Attestation) (string, error)
	TokenToAttestation(token string) (*core.Attestation, error)
}
