package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletlink/internal/eth"
	"github.com/layer-3/walletlink/ports"
	"github.com/layer-3/walletlink/service"
	"github.com/rs/zerolog/log"
)

// PairingHandlers contains HTTP handlers for the browser pairing endpoints
type PairingHandlers struct {
	verifier  *service.ChallengeVerifier
	tokenizer ports.Tokenizer
}

// NewPairingHandlers creates new pairing handlers
func NewPairingHandlers(verifier *service.ChallengeVerifier, tokenizer ports.Tokenizer) *PairingHandlers {
	return &PairingHandlers{
		verifier:  verifier,
		tokenizer: tokenizer,
	}
}

// WalletConnect issues a nonce and serves the page that has the browser
// wallet sign it
func (h *PairingHandlers) WalletConnect(c *gin.Context) {
	var req struct {
		ID  int64  `form:"id" binding:"required"`
		URI string `form:"uri" binding:"required"`
	}

	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	uri, err := decodePairingURI(req.URI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pairing uri"})
		return
	}

	nonce, err := h.verifier.IssueNonce(c.Request.Context(), req.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", req.ID).Msg("Failed to issue nonce")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.HTML(http.StatusOK, walletConnectTemplate, gin.H{
		"UserID":  req.ID,
		"Message": eth.Hexlify(nonce),
		"URI":     uri,
	})
}

// Verify checks the signature the browser wallet produced for the user's nonce
func (h *PairingHandlers) Verify(c *gin.Context) {
	var req struct {
		ID        int64  `form:"id" binding:"required"`
		Address   string `form:"address"`
		Signature string `form:"signature"`
	}

	if err := c.ShouldBindQuery(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid request")
		return
	}

	outcome, err := h.verifier.Verify(c.Request.Context(), req.ID, req.Address, req.Signature)
	if err != nil {
		log.Error().Err(err).Int64("user_id", req.ID).Msg("Failed to verify signature")
		c.String(http.StatusInternalServerError, "Failed to verify signature")
		return
	}

	if !outcome.OK() {
		c.String(http.StatusUnauthorized, "Invalid signature")
		return
	}

	c.String(http.StatusOK, "Signature verified!")
}

// Attestation validates an ownership attestation token
func (h *PairingHandlers) Attestation(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	attestation, err := h.tokenizer.TokenToAttestation(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid attestation token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         attestation.ID,
		"user_id":    attestation.UserID,
		"address":    attestation.Address,
		"issued_at":  attestation.IssuedAt.UTC().Format(time.RFC3339),
		"expires_at": attestation.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Health reports that the server is up
func (h *PairingHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var errUnsupportedScheme = errors.New("unsupported pairing uri scheme")

var pairingURIEncodings = []*base64.Encoding{
	base64.URLEncoding,
	base64.RawURLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// decodePairingURI accepts the uri query parameter in any base64 flavour and
// only lets through schemes a wallet can open
func decodePairingURI(encoded string) (string, error) {
	var (
		decoded []byte
		err     error
	)
	for _, enc := range pairingURIEncodings {
		if decoded, err = enc.DecodeString(encoded); err == nil {
			break
		}
	}
	if err != nil {
		return "", err
	}

	u, err := url.Parse(string(decoded))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "wc", "http", "https":
		return string(decoded), nil
	default:
		return "", errUnsupportedScheme
	}
}
