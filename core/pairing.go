package core

import "time"

// Nonce is a single-use challenge bound to a user for the browser signing path
type Nonce struct {
	UserID    int64     // Telegram user the nonce was issued to
	Value     string    // Random hex string the wallet signs
	IssuedAt  time.Time // When the nonce was created
	ExpiresAt time.Time // When the nonce stops being accepted
}

// Attestation records that a user proved ownership of an address
type Attestation struct {
	ID        string    // Unique identifier for the attestation
	UserID    int64     // Telegram user who paired the wallet
	Address   string    // Ethereum address of the wallet
	IssuedAt  time.Time // When the attestation was created
	ExpiresAt time.Time // When the attestation expires
}

// OutcomeEvent is published whenever a pairing attempt is resolved
type OutcomeEvent struct {
	AttemptID   string `json:"attempt_id"`
	UserID      int64  `json:"user_id"`
	Address     string `json:"address,omitempty"`
	Error       string `json:"error,omitempty"`
	Attestation string `json:"attestation,omitempty"`
}

// Button is an inline keyboard button. Exactly one of URL or Data is set.
type Button struct {
	Text string
	URL  string
	Data string
}

// Message is an outbound chat message. A non-empty Photo makes it an image
// message with Text as its caption.
type Message struct {
	ChatID    int64
	Text      string
	Photo     []byte
	PhotoName string
	Buttons   [][]Button
}

// IsPhoto reports whether the message carries an image.
func (m Message) IsPhoto() bool {
	return len(m.Photo) > 0
}
