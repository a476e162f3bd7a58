package service

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletlink/core"
)

func TestBrowserURL(t *testing.T) {
	link := BrowserURL("https://pair.example.com/", 42, "wc:abc@2?relay-protocol=irn&symKey=ff")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "pair.example.com", u.Host)
	assert.Equal(t, "/wallet_connect", u.Path)
	assert.Equal(t, "42", u.Query().Get("id"))

	uri, err := base64.URLEncoding.DecodeString(u.Query().Get("uri"))
	require.NoError(t, err)
	assert.Equal(t, "wc:abc@2?relay-protocol=irn&symKey=ff", string(uri))
}

func TestPairingBrowsable(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"https://wallet.example.com/wc?uri=abc", true},
		{"HTTP://wallet.example.com", true},
		{"wc:abc@2?relay-protocol=irn", false},
		{"", false},
		{"::not a uri", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, Pairing{URI: tt.uri}.Browsable())
		})
	}
}

func TestPairingServiceConnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newFakeSession()
	s.events <- fakeURIEvent("wc:abc")

	correlator := NewSessionCorrelator(&fakeOpener{session: s})
	sender := &recordingSender{}
	svc := NewPairingService(correlator, NewDeliveryQueue(ctx, sender), "http://localhost:8080")

	pairing, err := svc.Connect(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), pairing.UserID)
	assert.Equal(t, "wc:abc", pairing.URI)
	assert.Equal(t, BrowserURL("http://localhost:8080", 42, "wc:abc"), pairing.BrowserURL)
	assert.False(t, pairing.Browsable())

	require.True(t, correlator.Resolve(42, core.Succeeded("0xFEED")))

	resultCtx, resultCancel := context.WithTimeout(ctx, time.Second)
	defer resultCancel()
	outcome, err := svc.Result(resultCtx, 42)
	require.NoError(t, err)
	assert.Equal(t, "0xFEED", outcome.Address)

	svc.Send(core.Message{ChatID: 42, Text: "paired"})
	require.Eventually(t, func() bool { return len(sender.texts()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestPairingServiceConnectAlreadyPending(t *testing.T) {
	ctx := context.Background()
	s := newFakeSession()
	s.events <- fakeURIEvent("wc:abc")

	svc := NewPairingService(NewSessionCorrelator(&fakeOpener{session: s}), nil, "http://localhost:8080")

	_, err := svc.Connect(ctx, 42)
	require.NoError(t, err)

	_, err = svc.Connect(ctx, 42)
	assert.ErrorIs(t, err, core.ErrAlreadyPending)
}

func TestPairingServiceSettledWithoutURI(t *testing.T) {
	c := NewSessionCorrelator(&fakeOpener{session: newFakeSession()})
	svc := NewPairingService(c, nil, "http://localhost:8080")

	go func() {
		for !c.Resolve(42, core.Succeeded("0xFEED")) {
			time.Sleep(time.Millisecond)
		}
	}()

	pairing, err := svc.Connect(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, pairing.URI)
	assert.Empty(t, pairing.BrowserURL)
}
