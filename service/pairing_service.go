package service

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"github.com/layer-3/walletlink/core"
)

// Pairing is what the bot needs to show a user so they can pair their wallet
type Pairing struct {
	UserID     int64
	URI        string // pairing URI for the QR code
	BrowserURL string // page that pairs through a browser wallet extension
}

// Browsable reports whether the pairing URI can be opened in a web browser
func (p Pairing) Browsable() bool {
	u, err := url.Parse(p.URI)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "https" || scheme == "http"
}

// PairingService is the entry point used by the bot transport
type PairingService struct {
	correlator *SessionCorrelator
	queue      *DeliveryQueue
	backendURL string
}

// NewPairingService creates a new pairing service
func NewPairingService(correlator *SessionCorrelator, queue *DeliveryQueue, backendURL string) *PairingService {
	return &PairingService{
		correlator: correlator,
		queue:      queue,
		backendURL: strings.TrimRight(backendURL, "/"),
	}
}

// Connect starts a pairing attempt for userID. The URI is empty when the
// attempt was already settled and only the result remains.
func (s *PairingService) Connect(ctx context.Context, userID int64) (Pairing, error) {
	uri, err := s.correlator.Connect(ctx, userID)
	if err != nil {
		return Pairing{}, err
	}

	pairing := Pairing{UserID: userID, URI: uri}
	if uri != "" {
		pairing.BrowserURL = BrowserURL(s.backendURL, userID, uri)
	}
	return pairing, nil
}

// Result waits for and consumes the outcome of the user's pairing attempt
func (s *PairingService) Result(ctx context.Context, userID int64) (core.Outcome, error) {
	return s.correlator.Result(ctx, userID)
}

// Send queues msg for delivery
func (s *PairingService) Send(msg core.Message) {
	s.queue.Enqueue(msg)
}

// BrowserURL builds the /wallet_connect link for userID and a pairing URI
func BrowserURL(backendURL string, userID int64, uri string) string {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(userID, 10))
	q.Set("uri", base64.URLEncoding.EncodeToString([]byte(uri)))
	return strings.TrimRight(backendURL, "/") + "/wallet_connect?" + q.Encode()
}
