package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/internal/eth"
	"github.com/layer-3/walletlink/ports"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPairingTimeout bounds how long a pairing attempt waits for a wallet
	DefaultPairingTimeout = 5 * time.Minute

	// DefaultAttestationTTL is how long an ownership attestation stays valid
	DefaultAttestationTTL = 24 * time.Hour
)

// attempt is one pairing attempt. done is closed by the first outcome writer.
type attempt struct {
	id      string
	userID  int64
	ctx     context.Context
	cancel  context.CancelFunc
	session ports.WalletSession

	done     chan struct{}
	resolved bool
	outcome  core.Outcome
}

// SessionCorrelator drives each wallet pairing attempt to exactly one outcome
type SessionCorrelator struct {
	opener    ports.SessionOpener
	eventPub  ports.EventPublisher
	tokenizer ports.Tokenizer

	timeout        time.Duration
	attestationTTL time.Duration

	mu       sync.Mutex
	attempts map[int64]*attempt
}

// CorrelatorOption configures a SessionCorrelator
type CorrelatorOption func(*SessionCorrelator)

// WithPairingTimeout overrides DefaultPairingTimeout
func WithPairingTimeout(d time.Duration) CorrelatorOption {
	return func(c *SessionCorrelator) {
		c.timeout = d
	}
}

// WithEventPublisher publishes every resolved outcome
func WithEventPublisher(eventPub ports.EventPublisher) CorrelatorOption {
	return func(c *SessionCorrelator) {
		c.eventPub = eventPub
	}
}

// WithTokenizer attaches an ownership attestation to published successes
func WithTokenizer(tokenizer ports.Tokenizer) CorrelatorOption {
	return func(c *SessionCorrelator) {
		c.tokenizer = tokenizer
	}
}

// NewSessionCorrelator creates a new session correlator
func NewSessionCorrelator(opener ports.SessionOpener, opts ...CorrelatorOption) *SessionCorrelator {
	c := &SessionCorrelator{
		opener:         opener,
		timeout:        DefaultPairingTimeout,
		attestationTTL: DefaultAttestationTTL,
		attempts:       make(map[int64]*attempt),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the pairing timeout
func (c *SessionCorrelator) Timeout() time.Duration {
	return c.timeout
}

// Connect opens a wallet session for userID and returns its pairing URI.
// The verification outcome is collected separately with Result. Connect fails
// with ErrPairingTimeout when no URI arrives within the pairing timeout. An
// attempt settled successfully before its URI arrived yields an empty URI and
// a nil error.
func (c *SessionCorrelator) Connect(ctx context.Context, userID int64) (string, error) {
	a, err := c.reserve(userID)
	if err != nil {
		return "", err
	}

	session, err := c.opener.Open(ctx, userID)
	if err != nil {
		c.drop(a)
		return "", fmt.Errorf("failed to open wallet session: %w", err)
	}

	c.mu.Lock()
	a.session = session
	resolved := a.resolved
	c.mu.Unlock()

	// resolve had no session to close yet
	if resolved {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Str("attempt_id", a.id).Msg("Failed to close wallet session")
		}
	}

	uris := make(chan string, 1)
	go Guard("session watcher", func() { c.watch(a, session, uris) })

	// The relay may never answer, so the wait for a URI is bounded too
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case uri := <-uris:
		go Guard("pairing timeout", func() { c.expire(a) })
		log.Info().Int64("user_id", userID).Str("attempt_id", a.id).Msg("Wallet pairing started")
		return uri, nil
	case <-a.done:
		return c.settledBeforeURI(a)
	case <-timer.C:
		c.resolve(a, core.Failed(core.ErrPairingTimeout))
		return c.settledBeforeURI(a)
	case <-ctx.Done():
		c.resolve(a, core.Failed(ctx.Err()))
		c.drop(a)
		return "", ctx.Err()
	}
}

// settledBeforeURI ends a Connect whose attempt was resolved before a URI
// arrived. A success is left for Result, a failure releases the user.
func (c *SessionCorrelator) settledBeforeURI(a *attempt) (string, error) {
	if a.outcome.OK() {
		return "", nil
	}
	c.drop(a)
	return "", fmt.Errorf("no pairing uri from wallet session: %w", a.outcome.Err)
}

// Result waits for the outcome of the user's pairing attempt and consumes it
func (c *SessionCorrelator) Result(ctx context.Context, userID int64) (core.Outcome, error) {
	c.mu.Lock()
	a := c.attempts[userID]
	c.mu.Unlock()

	if a == nil {
		return core.Outcome{}, core.ErrNoAttempt
	}

	select {
	case <-a.done:
	case <-ctx.Done():
		return core.Outcome{}, ctx.Err()
	}

	c.drop(a)
	return a.outcome, nil
}

// Resolve records outcome for the user's open attempt if none is recorded yet
func (c *SessionCorrelator) Resolve(userID int64, outcome core.Outcome) bool {
	c.mu.Lock()
	a := c.attempts[userID]
	c.mu.Unlock()

	if a == nil {
		log.Warn().Int64("user_id", userID).Msg("Verification outcome without pairing attempt")
		return false
	}
	return c.resolve(a, outcome)
}

// Pending reports whether userID has an unresolved pairing attempt
func (c *SessionCorrelator) Pending(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.attempts[userID]
	return a != nil && !a.resolved
}

func (c *SessionCorrelator) reserve(userID int64) (*attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A resolved but unconsumed attempt no longer blocks the user
	if prev := c.attempts[userID]; prev != nil && !prev.resolved {
		return nil, core.ErrAlreadyPending
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{
		id:     uuid.New().String(),
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.attempts[userID] = a
	return a, nil
}

func (c *SessionCorrelator) drop(a *attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempts[a.userID] == a {
		delete(c.attempts, a.userID)
	}
}

// resolve is the insert-if-absent write on the attempt's outcome slot
func (c *SessionCorrelator) resolve(a *attempt, outcome core.Outcome) bool {
	c.mu.Lock()
	if a.resolved {
		c.mu.Unlock()
		return false
	}
	a.resolved = true
	a.outcome = outcome
	close(a.done)
	session := a.session
	c.mu.Unlock()

	a.cancel()
	if session != nil {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Str("attempt_id", a.id).Msg("Failed to close wallet session")
		}
	}

	logEvent := log.Info()
	if !outcome.OK() {
		logEvent = log.Warn().Err(outcome.Err)
	}
	logEvent.Int64("user_id", a.userID).Str("attempt_id", a.id).Str("address", outcome.Address).Msg("Wallet pairing resolved")

	c.publish(a, outcome)

	// An outcome nobody collects is kept for one pairing timeout
	time.AfterFunc(c.timeout, func() { c.drop(a) })
	return true
}

func (c *SessionCorrelator) publish(a *attempt, outcome core.Outcome) {
	if c.eventPub == nil {
		return
	}

	event := &core.OutcomeEvent{
		AttemptID: a.id,
		UserID:    a.userID,
		Address:   outcome.Address,
	}
	if outcome.OK() {
		event.Attestation = c.attest(a, outcome.Address)
	} else {
		event.Error = outcome.Err.Error()
	}

	// Publishing is best effort, the outcome is already recorded
	if err := c.eventPub.PublishOutcome(context.Background(), event); err != nil {
		log.Error().Err(err).Str("attempt_id", a.id).Msg("Failed to publish pairing outcome")
	}
}

func (c *SessionCorrelator) attest(a *attempt, address string) string {
	if c.tokenizer == nil {
		return ""
	}

	now := time.Now()
	token, err := c.tokenizer.AttestationToToken(&core.Attestation{
		ID:        a.id,
		UserID:    a.userID,
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.attestationTTL),
	})
	if err != nil {
		log.Error().Err(err).Str("attempt_id", a.id).Msg("Failed to create attestation")
		return ""
	}
	return token
}

// watch follows the session until it produces an outcome or the attempt is resolved elsewhere
func (c *SessionCorrelator) watch(a *attempt, session ports.WalletSession, uris chan<- string) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			log.Error().Err(err).Str("fault", ClassifyFault(err)).Str("attempt_id", a.id).Msg("Wallet session watcher panicked")
			c.resolve(a, core.Failed(fmt.Errorf("%w: %w", core.ErrSigningRequestFailed, err)))
		}
	}()

	uriSent := false
	var accounts []string
	connected := false

	events := session.Events()
	for {
		select {
		case <-a.done:
			return
		case ev, ok := <-events:
			if !ok {
				c.resolve(a, core.Failed(fmt.Errorf("%w: session closed", core.ErrSigningRequestFailed)))
				return
			}

			switch ev.Type {
			case ports.EventDisplayURI:
				if uriSent || ev.URI == "" {
					continue
				}
				uriSent = true
				uris <- ev.URI
				if connected {
					c.confirm(a, session, accounts)
					return
				}
			case ports.EventConnect:
				// Events may arrive out of order, signing waits for the URI
				if !uriSent {
					connected, accounts = true, ev.Accounts
					continue
				}
				c.confirm(a, session, ev.Accounts)
				return
			case ports.EventError:
				log.Error().Err(ev.Err).Str("fault", ClassifyFault(ev.Err)).Str("attempt_id", a.id).Msg("Wallet session failed")
				c.resolve(a, core.Failed(fmt.Errorf("%w: %w", core.ErrSigningRequestFailed, ev.Err)))
				return
			}
		}
	}
}

// confirm asks the first offered account to sign the user's challenge
func (c *SessionCorrelator) confirm(a *attempt, session ports.WalletSession, accounts []string) {
	if len(accounts) == 0 {
		c.resolve(a, core.Failed(core.ErrNoAccountsOffered))
		return
	}
	account := accounts[0]

	inner := ChallengePayload(a.userID)
	signature, err := session.PersonalSign(a.ctx, eth.Hexlify(inner), account)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Str("attempt_id", a.id).Msg("Wallet failed to confirm signing request")
		c.resolve(a, core.Failed(fmt.Errorf("%w: %w", core.ErrSigningRequestFailed, err)))
		return
	}

	ok, err := eth.VerifyPersonal([]byte(inner), signature, account)
	if err != nil || !ok {
		c.resolve(a, core.Failed(core.ErrSignatureMismatch))
		return
	}

	c.resolve(a, core.Succeeded(account))
}

func (c *SessionCorrelator) expire(a *attempt) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-a.done:
	case <-timer.C:
		c.resolve(a, core.Failed(core.ErrPairingTimeout))
	}
}

// ChallengePayload is the message the wallet session signs for userID: the
// hex encoding of the decimal user id. Wallets receive it hex-encoded again.
func ChallengePayload(userID int64) string {
	return eth.Hexlify(strconv.FormatInt(userID, 10))
}
