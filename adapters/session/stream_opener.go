// Package session bridges wallet sessions to an external relay worker over
// watermill topics. The worker speaks the wallet protocol; this side only sees
// pairing URIs, approved accounts and signing results.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/walletlink/internal/eth"
	"github.com/layer-3/walletlink/ports"
	"github.com/rs/zerolog/log"
)

const (
	OpenTopic   = "walletlink.session.open"
	SignTopic   = "walletlink.session.sign"
	CloseTopic  = "walletlink.session.close"
	EventsTopic = "walletlink.session.events"
)

const (
	eventDisplayURI = "display_uri"
	eventConnect    = "connect"
	eventSignResult = "sign_result"
	eventError      = "error"
)

// Config describes the chain and project the relay worker pairs against
type Config struct {
	ChainID   int64
	ProjectID string
}

type openCommand struct {
	AttemptID string `json:"attempt_id"`
	UserID    int64  `json:"user_id"`
	ChainID   int64  `json:"chain_id"`
	ProjectID string `json:"project_id,omitempty"`
}

type signCommand struct {
	AttemptID string   `json:"attempt_id"`
	RequestID string   `json:"request_id"`
	Method    string   `json:"method"`
	Params    []string `json:"params"`
}

type closeCommand struct {
	AttemptID string `json:"attempt_id"`
}

type streamEvent struct {
	AttemptID string   `json:"attempt_id"`
	Type      string   `json:"type"`
	URI       string   `json:"uri,omitempty"`
	Accounts  []string `json:"accounts,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// StreamOpener implements ports.SessionOpener on top of watermill
type StreamOpener struct {
	publisher message.Publisher
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*streamSession
}

// NewStreamOpener creates a new session opener publishing commands with publisher
func NewStreamOpener(publisher message.Publisher, cfg Config) *StreamOpener {
	return &StreamOpener{
		publisher: publisher,
		cfg:       cfg,
		sessions:  make(map[string]*streamSession),
	}
}

// Start subscribes to worker events and dispatches them until ctx is done
func (o *StreamOpener) Start(ctx context.Context, subscriber message.Subscriber) error {
	messages, err := subscriber.Subscribe(ctx, EventsTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	go func() {
		for msg := range messages {
			o.dispatch(msg)
			msg.Ack()
		}
	}()

	return nil
}

// Open asks the relay worker for a new wallet session
func (o *StreamOpener) Open(ctx context.Context, userID int64) (ports.WalletSession, error) {
	s := &streamSession{
		id:       uuid.New().String(),
		opener:   o,
		events:   make(chan ports.SessionEvent, 16),
		requests: make(map[string]chan streamEvent),
	}

	o.mu.Lock()
	o.sessions[s.id] = s
	o.mu.Unlock()

	err := o.publish(ctx, OpenTopic, s.id, openCommand{
		AttemptID: s.id,
		UserID:    userID,
		ChainID:   o.cfg.ChainID,
		ProjectID: o.cfg.ProjectID,
	})
	if err != nil {
		o.remove(s.id)
		return nil, err
	}

	return s, nil
}

func (o *StreamOpener) publish(ctx context.Context, topic, attemptID string, command any) error {
	payload, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("attempt_id", attemptID)

	if err := o.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

func (o *StreamOpener) remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sessions, id)
}

func (o *StreamOpener) dispatch(msg *message.Message) {
	var ev streamEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed session event")
		return
	}

	o.mu.Lock()
	s := o.sessions[ev.AttemptID]
	o.mu.Unlock()
	if s == nil {
		log.Debug().Str("attempt_id", ev.AttemptID).Str("type", ev.Type).Msg("Session event for unknown attempt")
		return
	}

	switch ev.Type {
	case eventDisplayURI:
		s.emit(ports.SessionEvent{Type: ports.EventDisplayURI, URI: ev.URI})
	case eventConnect:
		accounts := make([]string, 0, len(ev.Accounts))
		for _, account := range ev.Accounts {
			accounts = append(accounts, eth.ParseAccount(account))
		}
		s.emit(ports.SessionEvent{Type: ports.EventConnect, Accounts: accounts})
	case eventSignResult:
		s.deliver(ev)
	case eventError:
		s.emit(ports.SessionEvent{Type: ports.EventError, Err: errors.New(ev.Error)})
	default:
		log.Warn().Str("attempt_id", ev.AttemptID).Str("type", ev.Type).Msg("Unknown session event type")
	}
}

type streamSession struct {
	id     string
	opener *StreamOpener
	events chan ports.SessionEvent

	mu        sync.Mutex
	requests  map[string]chan streamEvent
	closed    bool
	closeOnce sync.Once
}

func (s *streamSession) Events() <-chan ports.SessionEvent {
	return s.events
}

func (s *streamSession) emit(ev ports.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.events <- ev:
	default:
		log.Warn().Str("attempt_id", s.id).Str("type", string(ev.Type)).Msg("Session event buffer full, dropping event")
	}
}

func (s *streamSession) deliver(ev streamEvent) {
	s.mu.Lock()
	ch := s.requests[ev.RequestID]
	s.mu.Unlock()
	if ch == nil {
		return
	}

	select {
	case ch <- ev:
	default:
	}
}

// PersonalSign sends a personal_sign request and waits for the worker's answer
func (s *streamSession) PersonalSign(ctx context.Context, msg, account string) (string, error) {
	requestID := uuid.New().String()
	result := make(chan streamEvent, 1)

	s.mu.Lock()
	s.requests[requestID] = result
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.requests, requestID)
		s.mu.Unlock()
	}()

	err := s.opener.publish(ctx, SignTopic, s.id, signCommand{
		AttemptID: s.id,
		RequestID: requestID,
		Method:    "personal_sign",
		Params:    []string{msg, account},
	})
	if err != nil {
		return "", err
	}

	select {
	case ev := <-result:
		if ev.Error != "" {
			return "", fmt.Errorf("wallet rejected signing request: %s", ev.Error)
		}
		if ev.Signature == "" {
			return "", errors.New("wallet returned empty signature")
		}
		return ev.Signature, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close ends the session and tells the worker to disconnect
func (s *streamSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()

		s.opener.remove(s.id)
		err = s.opener.publish(context.Background(), CloseTopic, s.id, closeCommand{AttemptID: s.id})
	})
	return err
}
