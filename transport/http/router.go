package http

import (
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletlink/ports"
	"github.com/layer-3/walletlink/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(verifier *service.ChallengeVerifier, tokenizer ports.Tokenizer, limiter *RateLimiter) *gin.Engine {
	router := gin.Default()
	router.SetHTMLTemplate(template.Must(template.New(walletConnectTemplate).Parse(walletConnectPage)))

	// Create handlers
	handlers := NewPairingHandlers(verifier, tokenizer)

	router.GET("/healthz", handlers.Health)

	// Browser pairing routes
	pairing := router.Group("/")
	if limiter != nil {
		pairing.Use(limiter.Limit())
	}
	{
		pairing.GET("/wallet_connect", handlers.WalletConnect)
		pairing.GET("/verify", handlers.Verify)
		pairing.GET("/attestation", handlers.Attestation)
	}

	return router
}
