package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/ports"
)

const AudienceAttestation = "walletlink:attestation"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// AttestationToToken converts an Attestation to a JWT token
func (j *JWTTokenizer) AttestationToToken(attestation *core.Attestation) (string, error) {
	claims := AttestationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   attestation.Address,
			ID:        attestation.ID,
			ExpiresAt: jwt.NewNumericDate(attestation.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(attestation.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAttestation},
		},
		UserID: attestation.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// TokenToAttestation converts a JWT token to an Attestation
func (j *JWTTokenizer) TokenToAttestation(tokenStr string) (*core.Attestation, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AttestationClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceAttestation), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", errors.Join(core.ErrInvalidToken, err))
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AttestationClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type: %w", core.ErrInvalidToken)
	}

	return &core.Attestation{
		ID:        claims.ID,
		UserID:    claims.UserID,
		Address:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
