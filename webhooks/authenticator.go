package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/goliatone/go-callverify/core"
)

const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// HMACAuthenticator checks an HMAC-SHA256 signature of the raw body carried
// in Header. With an empty Secret every request passes and a warning is
// logged each time.
type HMACAuthenticator struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string
	Logger   core.Logger
}

func NewHMACAuthenticator(secret string, logger core.Logger) HMACAuthenticator {
	return HMACAuthenticator{
		Header:   core.DefaultSignatureHeader,
		Prefix:   "sha256=",
		Secret:   secret,
		Encoding: EncodingHex,
		Logger:   logger,
	}
}

func (a HMACAuthenticator) Verify(ctx context.Context, req core.InboundRequest) error {
	header := a.header()
	metadata := map[string]any{"provider_id": req.ProviderID, "header": header}
	if a.insecure() {
		core.LogWithFields(ctx, a.Logger, "warn", "webhook secret not configured, skipping signature validation", metadata)
		return nil
	}
	signature := headerValue(req.Headers, header)
	if signature == "" {
		return core.NewSignatureError(errors.New("webhooks: signature header is missing"), metadata)
	}
	if !a.Authenticate(req.Body, signature) {
		return core.NewSignatureError(errors.New("webhooks: signature mismatch"), metadata)
	}
	return nil
}

// Authenticate reports whether signature matches body. It does not log.
func (a HMACAuthenticator) Authenticate(body []byte, signature string) bool {
	if a.insecure() {
		return true
	}
	signature = strings.TrimSpace(signature)
	if prefix := strings.TrimSpace(a.Prefix); prefix != "" {
		signature = strings.TrimPrefix(signature, prefix)
	}
	if signature == "" {
		return false
	}

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(a.Encoding)) {
	case EncodingBase64:
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(decoded, Sign(a.Secret, body)) == 1
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

func SignHex(secret string, body []byte) string {
	return hex.EncodeToString(Sign(secret, body))
}

func (a HMACAuthenticator) insecure() bool {
	return strings.TrimSpace(a.Secret) == ""
}

func (a HMACAuthenticator) header() string {
	if header := strings.TrimSpace(a.Header); header != "" {
		return header
	}
	return core.DefaultSignatureHeader
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
