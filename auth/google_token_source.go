package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/transport"
	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ScopeSpreadsheets = "https://www.googleapis.com/auth/spreadsheets"

	jwtBearerGrantType   = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	defaultAssertionTTL  = time.Hour
	defaultRefreshLeeway = time.Minute
)

// TokenSource yields a bearer token for outbound requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TokenSourceFunc func(ctx context.Context) (string, error)

func (fn TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return fn(ctx)
}

// StaticToken returns the same token on every call.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

type ServiceAccountTokenSourceConfig struct {
	Key       ServiceAccountKey
	Scopes    []string
	TokenURL  string
	Transport core.TransportAdapter
	Leeway    time.Duration
	Now       func() time.Time
}

// ServiceAccountTokenSource exchanges a signed RS256 assertion for a Google
// OAuth access token and caches it until shortly before expiry.
type ServiceAccountTokenSource struct {
	key       ServiceAccountKey
	signer    *rsa.PrivateKey
	scopes    string
	tokenURL  string
	transport core.TransportAdapter
	leeway    time.Duration
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type googleAssertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewServiceAccountTokenSource(cfg ServiceAccountTokenSourceConfig) (*ServiceAccountTokenSource, error) {
	signer, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.Key.PrivateKey))
	if err != nil {
		return nil, authWrapError(err, goerrors.CategoryValidation,
			"auth: parse service account private key", http.StatusBadRequest,
			map[string]any{"client_email": cfg.Key.ClientEmail})
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeSpreadsheets}
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = strings.TrimSpace(cfg.Key.TokenURI)
	}
	if tokenURL == "" {
		tokenURL = core.DefaultGoogleTokenURL
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultRefreshLeeway
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ServiceAccountTokenSource{
		key:       cfg.Key,
		signer:    signer,
		scopes:    strings.Join(scopes, " "),
		tokenURL:  tokenURL,
		transport: adapter,
		leeway:    leeway,
		now:       now,
	}, nil
}

func (s *ServiceAccountTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if s.token != "" && now.Add(s.leeway).Before(s.expiresAt) {
		return s.token, nil
	}

	assertion, err := s.assertion(now)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	res, err := s.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    s.tokenURL,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		Body: []byte(form.Encode()),
	})
	if err == nil && (res.StatusCode < 200 || res.StatusCode >= 300) {
		err = transport.StatusError("google_oauth", res)
	}
	if err != nil {
		return "", authWrapError(err, goerrors.CategoryExternal,
			"auth: google token exchange failed", http.StatusBadGateway,
			map[string]any{"client_email": s.key.ClientEmail})
	}
	payload, err := decodeTokenResponse(res.Body)
	if err != nil {
		return "", authWrapError(err, goerrors.CategoryExternal,
			"auth: decode google token response", http.StatusBadGateway,
			map[string]any{"client_email": s.key.ClientEmail})
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", authWrapError(nil, goerrors.CategoryExternal,
			"auth: google token response missing access_token", http.StatusBadGateway,
			map[string]any{"client_email": s.key.ClientEmail})
	}

	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultAssertionTTL
	}
	s.token = payload.AccessToken
	s.expiresAt = now.Add(ttl)
	return s.token, nil
}

// Invalidate drops the cached token so the next call exchanges a new one.
func (s *ServiceAccountTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *ServiceAccountTokenSource) assertion(now time.Time) (string, error) {
	claims := googleAssertionClaims{
		Scope: s.scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.key.ClientEmail,
			Audience:  jwt.ClaimStrings{s.tokenURL},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(defaultAssertionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid := strings.TrimSpace(s.key.PrivateKeyID); kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(s.signer)
	if err != nil {
		return "", authWrapError(err, goerrors.CategoryInternal,
			"auth: sign service account assertion", http.StatusInternalServerError, nil)
	}
	return signed, nil
}

func decodeTokenResponse(body []byte) (googleTokenResponse, error) {
	var payload googleTokenResponse
	err := json.Unmarshal(body, &payload)
	return payload, err
}
