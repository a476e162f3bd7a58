package ports

import (
	"context"

	"github.com/layer-3/walletlink/core"
)

// SessionEventType identifies a wallet session event
type SessionEventType string

const (
	// EventDisplayURI carries the pairing URI to show to the user
	EventDisplayURI SessionEventType = "display_uri"
	// EventConnect carries the accounts approved by the wallet
	EventConnect SessionEventType = "connect"
	// EventError reports that the session failed
	EventError SessionEventType = "error"
)

// SessionEvent is emitted by a wallet session
type SessionEvent struct {
	Type     SessionEventType
	URI      string
	Accounts []string
	Err      error
}

// WalletSession is one live connection to an external wallet
type WalletSession interface {
	// Events is closed when the session ends
	Events() <-chan SessionEvent
	// PersonalSign asks the wallet to sign message with account and returns the hex signature
	PersonalSign(ctx context.Context, message, account string) (string, error)
	Close() error
}

// SessionOpener creates wallet sessions
type SessionOpener interface {
	Open(ctx context.Context, userID int64) (WalletSession, error)
}

// OutcomeSink accepts an outcome for a user's open pairing attempt.
// It returns false when the attempt is already resolved or does not exist.
type OutcomeSink interface {
	Resolve(userID int64, outcome core.Outcome) bool
}

// Sender delivers a chat message through the bot transport
type Sender interface {
	Send(ctx context.Context, msg core.Message) error
}
