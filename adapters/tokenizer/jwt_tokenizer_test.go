package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletlink/core"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestAttestationToken(t *testing.T) {
	tok := NewJWTTokenizer(newKey(t))
	now := time.Now().Truncate(time.Second)

	token, err := tok.AttestationToToken(&core.Attestation{
		ID:        "att-1",
		UserID:    42,
		Address:   "0xDEAD",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	attestation, err := tok.TokenToAttestation(token)
	require.NoError(t, err)
	assert.Equal(t, "att-1", attestation.ID)
	assert.Equal(t, int64(42), attestation.UserID)
	assert.Equal(t, "0xDEAD", attestation.Address)
	assert.True(t, attestation.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestAttestationTokenRejected(t *testing.T) {
	tok := NewJWTTokenizer(newKey(t))
	now := time.Now()

	t.Run("expired", func(t *testing.T) {
		token, err := tok.AttestationToToken(&core.Attestation{
			ID:        "att-2",
			UserID:    1,
			Address:   "0xBEEF",
			IssuedAt:  now.Add(-2 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		})
		require.NoError(t, err)

		_, err = tok.TokenToAttestation(token)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})

	t.Run("foreign key", func(t *testing.T) {
		other := NewJWTTokenizer(newKey(t))
		token, err := other.AttestationToToken(&core.Attestation{
			ID:        "att-3",
			UserID:    1,
			Address:   "0xBEEF",
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		})
		require.NoError(t, err)

		_, err = tok.TokenToAttestation(token)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tok.TokenToAttestation("not-a-token")
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})
}
