package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/internal/eth"
	"github.com/layer-3/walletlink/ports"
	"github.com/rs/zerolog/log"
)

// ChallengeVerifier handles the browser signing path: it issues single-use
// nonces and checks the signatures wallets return for them
type ChallengeVerifier struct {
	store    ports.NonceStore
	sink     ports.OutcomeSink
	nonceTTL time.Duration
}

// NewChallengeVerifier creates a new challenge verifier. Outcomes of verified
// nonces are forwarded to sink.
func NewChallengeVerifier(store ports.NonceStore, sink ports.OutcomeSink, nonceTTL time.Duration) *ChallengeVerifier {
	return &ChallengeVerifier{
		store:    store,
		sink:     sink,
		nonceTTL: nonceTTL,
	}
}

// IssueNonce generates and stores a fresh nonce for userID
func (v *ChallengeVerifier) IssueNonce(ctx context.Context, userID int64) (string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	nonce := &core.Nonce{
		UserID:   userID,
		Value:    hex.EncodeToString(nonceBytes),
		IssuedAt: now,
	}
	if v.nonceTTL > 0 {
		nonce.ExpiresAt = now.Add(v.nonceTTL)
	}

	if err := v.store.Put(ctx, nonce); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}

	return nonce.Value, nil
}

// Verify consumes the user's nonce and checks that signature over it was made
// by claimedAddress. The error is only set when the nonce store fails.
func (v *ChallengeVerifier) Verify(ctx context.Context, userID int64, claimedAddress, signature string) (core.Outcome, error) {
	nonce, err := v.store.Take(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNonceNotFound) {
			return core.Failed(fmt.Errorf("%w: %w", core.ErrSignatureMismatch, core.ErrNoNonce)), nil
		}
		return core.Outcome{}, fmt.Errorf("failed to take nonce: %w", err)
	}

	outcome := core.Failed(core.ErrSignatureMismatch)
	ok, err := eth.VerifyPersonal([]byte(nonce.Value), signature, claimedAddress)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Error verifying signature")
	} else if ok {
		outcome = core.Succeeded(claimedAddress)
	}

	if v.sink != nil {
		v.sink.Resolve(userID, outcome)
	}

	return outcome, nil
}
