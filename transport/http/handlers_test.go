package http

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/layer-3/walletlink/adapters/store"
	"github.com/layer-3/walletlink/adapters/tokenizer"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/internal/eth"
	"github.com/layer-3/walletlink/ports"
	"github.com/layer-3/walletlink/service"
)

var messagePattern = regexp.MustCompile(`const message = "(0x[0-9a-f]+)";`)

type recordingSink struct {
	mu       sync.Mutex
	outcomes map[int64][]core.Outcome
}

func (s *recordingSink) Resolve(userID int64, outcome core.Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcomes == nil {
		s.outcomes = make(map[int64][]core.Outcome)
	}
	s.outcomes[userID] = append(s.outcomes[userID], outcome)
	return true
}

func (s *recordingSink) get(userID int64) []core.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[userID]
}

type testServer struct {
	router    *gin.Engine
	sink      *recordingSink
	tokenizer ports.Tokenizer
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	sink := &recordingSink{}
	verifier := service.NewChallengeVerifier(store.NewMemoryStore(), sink, time.Minute)
	tok := tokenizer.NewJWTTokenizer(signKey)

	return &testServer{
		router:    SetupRouter(verifier, tok, limiter),
		sink:      sink,
		tokenizer: tok,
	}
}

func (s *testServer) get(path string, query url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path+"?"+query.Encode(), nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) walletConnect(t *testing.T, userID int64, uri string) string {
	t.Helper()
	w := s.get("/wallet_connect", url.Values{
		"id":  {strconv.FormatInt(userID, 10)},
		"uri": {base64.URLEncoding.EncodeToString([]byte(uri))},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	match := messagePattern.FindStringSubmatch(w.Body.String())
	require.Len(t, match, 2, "page does not carry a signing message")

	nonce, err := hexutil.Decode(match[1])
	require.NoError(t, err)
	return string(nonce)
}

func signNonce(t *testing.T, nonce string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	signature, err := eth.SignPersonal(key, []byte(nonce))
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), signature
}

func TestBrowserPairing(t *testing.T) {
	s := newTestServer(t, nil)

	nonce := s.walletConnect(t, 42, "wc:abc@2?relay-protocol=irn&symKey=ff")
	assert.Len(t, nonce, 32)

	address, signature := signNonce(t, nonce)
	query := url.Values{
		"id":        {"42"},
		"address":   {address},
		"signature": {signature},
	}

	w := s.get("/verify", query)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Signature verified!", w.Body.String())

	outcomes := s.sink.get(42)
	require.Len(t, outcomes, 1)
	assert.Equal(t, core.Succeeded(address), outcomes[0])

	// The nonce is gone after the first verification
	w = s.get("/verify", query)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid signature", w.Body.String())
	assert.Len(t, s.sink.get(42), 1)
}

func TestVerifyWrongAddress(t *testing.T) {
	s := newTestServer(t, nil)

	nonce := s.walletConnect(t, 7, "wc:abc")
	_, signature := signNonce(t, nonce)
	other, _ := signNonce(t, nonce)

	w := s.get("/verify", url.Values{
		"id":        {"7"},
		"address":   {other},
		"signature": {signature},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	outcomes := s.sink.get(7)
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, core.ErrSignatureMismatch)
}

func TestVerifyRejectedInBrowser(t *testing.T) {
	s := newTestServer(t, nil)
	s.walletConnect(t, 7, "wc:abc")

	// The page redirects with only the id when the user rejects signing
	w := s.get("/verify", url.Values{"id": {"7"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.Len(t, s.sink.get(7), 1)
}

func TestVerifyBadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.get("/verify", url.Values{"id": {"not-a-number"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletConnectURIEncodings(t *testing.T) {
	s := newTestServer(t, nil)
	uri := []byte("wc:abc@2?relay-protocol=irn&symKey=ff>")

	for name, encoded := range map[string]string{
		"url":     base64.URLEncoding.EncodeToString(uri),
		"raw url": base64.RawURLEncoding.EncodeToString(uri),
		"std":     base64.StdEncoding.EncodeToString(uri),
		"raw std": base64.RawStdEncoding.EncodeToString(uri),
	} {
		t.Run(name, func(t *testing.T) {
			w := s.get("/wallet_connect", url.Values{"id": {"1"}, "uri": {encoded}})
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestWalletConnectRejectsBadURI(t *testing.T) {
	s := newTestServer(t, nil)

	for name, query := range map[string]url.Values{
		"missing id":   {"uri": {base64.URLEncoding.EncodeToString([]byte("wc:abc"))}},
		"missing uri":  {"id": {"1"}},
		"not base64":   {"id": {"1"}, "uri": {"%%%"}},
		"javascript":   {"id": {"1"}, "uri": {base64.URLEncoding.EncodeToString([]byte("javascript:alert(1)"))}},
		"no scheme":    {"id": {"1"}, "uri": {base64.URLEncoding.EncodeToString([]byte("example.com"))}},
		"bad id value": {"id": {"x"}, "uri": {base64.URLEncoding.EncodeToString([]byte("wc:abc"))}},
	} {
		t.Run(name, func(t *testing.T) {
			w := s.get("/wallet_connect", query)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAttestation(t *testing.T) {
	s := newTestServer(t, nil)

	issued := time.Now().Truncate(time.Second)
	token, err := s.tokenizer.AttestationToToken(&core.Attestation{
		ID:        "attempt-1",
		UserID:    42,
		Address:   "0x00000000000000000000000000000000DeaDBeef",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(time.Hour),
	})
	require.NoError(t, err)

	w := s.get("/attestation", url.Values{"token": {token}})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ID        string `json:"id"`
		UserID    int64  `json:"user_id"`
		Address   string `json:"address"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "attempt-1", body.ID)
	assert.Equal(t, int64(42), body.UserID)
	assert.Equal(t, "0x00000000000000000000000000000000DeaDBeef", body.Address)
	assert.Equal(t, issued.Add(time.Hour).UTC().Format(time.RFC3339), body.ExpiresAt)

	w = s.get("/attestation", url.Values{"token": {token + "x"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.get("/attestation", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.get("/healthz", url.Values{})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestServer(t, NewRateLimiter(ctx, rate.Every(time.Hour), 2))

	for i := 0; i < 2; i++ {
		w := s.get("/verify", url.Values{"id": {"1"}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := s.get("/verify", url.Values{"id": {"1"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Health checks are not limited
	w = s.get("/healthz", url.Values{})
	assert.Equal(t, http.StatusOK, w.Code)
}
