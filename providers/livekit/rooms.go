// Package livekit releases LiveKit rooms through the RoomService Twirp API.
package livekit

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-callverify/auth"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/transport"
	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceID = "livekit"

	deleteRoomPath = "/twirp/livekit.RoomService/DeleteRoom"
)

type Config struct {
	URL       string
	Tokens    auth.TokenSource
	Transport core.TransportAdapter
}

type RoomService struct {
	baseURL   string
	tokens    auth.TokenSource
	transport core.TransportAdapter
}

func New(cfg Config) (*RoomService, error) {
	baseURL := httpBaseURL(cfg.URL)
	if baseURL == "" {
		return nil, goerrors.New("livekit: url is required", goerrors.CategoryValidation).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	if cfg.Tokens == nil {
		return nil, goerrors.New("livekit: token source is required", goerrors.CategoryValidation).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	return &RoomService{baseURL: baseURL, tokens: cfg.Tokens, transport: adapter}, nil
}

// NewFromConfig signs room-admin tokens with the configured API key pair.
func NewFromConfig(cfg core.LiveKitConfig, adapter core.TransportAdapter) (*RoomService, error) {
	signer := auth.NewLiveKitTokenSigner(cfg.APIKey, cfg.APISecret, cfg.TokenTTL)
	return New(Config{URL: cfg.URL, Tokens: signer.RoomAdminSource(), Transport: adapter})
}

// DeleteRoom removes the room. A room LiveKit no longer knows is treated as
// already deleted.
func (s *RoomService) DeleteRoom(ctx context.Context, roomName string) error {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return nil
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return core.NewBackendError(err, "livekit: sign room token failed", map[string]any{"room": roomName})
	}
	_, err = transport.DoJSON(ctx, s.transport, transport.JSONRequest{
		Service: ServiceID,
		Method:  http.MethodPost,
		URL:     s.baseURL + deleteRoomPath,
		Headers: transport.BearerHeaders(token),
		Body:    map[string]string{"room": roomName},
	})
	if err != nil {
		if transport.UpstreamStatus(err) == http.StatusNotFound {
			return nil
		}
		return core.NewBackendError(err, "livekit: delete room failed", map[string]any{"room": roomName})
	}
	return nil
}

// httpBaseURL maps ws(s) server URLs to their http(s) API origin.
func httpBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	switch {
	case strings.HasPrefix(raw, "wss://"):
		return "https://" + strings.TrimPrefix(raw, "wss://")
	case strings.HasPrefix(raw, "ws://"):
		return "http://" + strings.TrimPrefix(raw, "ws://")
	}
	return raw
}

var _ core.RoomReleaser = (*RoomService)(nil)
