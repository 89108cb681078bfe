package livekit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-callverify/auth"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/transport"
)

func TestRoomService_DeleteRoomSendsSignedTwirpRequest(t *testing.T) {
	var gotPath, gotBody, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rooms, err := NewFromConfig(core.LiveKitConfig{
		URL:       server.URL,
		APIKey:    "key",
		APISecret: "secret",
		TokenTTL:  time.Minute,
	}, transport.NewRESTAdapter(server.Client()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := rooms.DeleteRoom(context.Background(), "room-1"); err != nil {
		t.Fatalf("delete room: %v", err)
	}

	if gotPath != deleteRoomPath {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody != `{"room":"room-1"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
	token := strings.TrimPrefix(gotAuth, "Bearer ")
	claims, err := auth.ParseLiveKitToken(token, "secret", time.Now())
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !claims.Video.RoomCreate || claims.Issuer != "key" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestRoomService_DeleteRoomNotFoundIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found","msg":"room not found"}`))
	}))
	defer server.Close()

	rooms, err := New(Config{URL: server.URL, Tokens: auth.StaticToken("t"), Transport: transport.NewRESTAdapter(server.Client())})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := rooms.DeleteRoom(context.Background(), "gone"); err != nil {
		t.Fatalf("expected not found to be ignored, got %v", err)
	}
}

func TestRoomService_DeleteRoomFailureIsBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	rooms, err := New(Config{URL: server.URL, Tokens: auth.StaticToken("t"), Transport: transport.NewRESTAdapter(server.Client())})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := rooms.DeleteRoom(context.Background(), "room"); !core.IsBackendError(err) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestHTTPBaseURL(t *testing.T) {
	cases := map[string]string{
		"wss://demo.livekit.cloud/": "https://demo.livekit.cloud",
		"ws://localhost:7880":       "http://localhost:7880",
		"https://api.example.com":   "https://api.example.com",
		"":                          "",
	}
	for in, want := range cases {
		if got := httpBaseURL(in); got != want {
			t.Fatalf("httpBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
