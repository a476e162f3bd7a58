package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AttestationClaims combines standard claims with the paired Telegram user
type AttestationClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}
