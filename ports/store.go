package ports

import (
	"context"

	"github.com/layer-3/walletlink/core"
)

// NonceStore keeps at most one live nonce per user
type NonceStore interface {
	// Put stores the nonce, replacing any nonce already issued to the same user
	Put(ctx context.Context, nonce *core.Nonce) error
	// Take removes and returns the user's nonce, or core.ErrNonceNotFound
	Take(ctx context.Context, userID int64) (*core.Nonce, error)
}
