package auth

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

// ServiceAccountKey is the subset of a Google service-account key file the
// token source needs.
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccountKey accepts the key as inline JSON or as a path to a JSON
// file.
func ParseServiceAccountKey(raw string) (ServiceAccountKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ServiceAccountKey{}, authConfigError("auth: service account key is required", nil)
	}
	payload := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		data, err := os.ReadFile(raw)
		if err != nil {
			return ServiceAccountKey{}, authWrapError(err, goerrors.CategoryValidation,
				"auth: read service account key file", 400, map[string]any{"path": raw})
		}
		payload = data
	}

	var key ServiceAccountKey
	if err := json.Unmarshal(payload, &key); err != nil {
		return ServiceAccountKey{}, authWrapError(err, goerrors.CategoryValidation,
			"auth: decode service account key", 400, nil)
	}
	key.ClientEmail = strings.TrimSpace(key.ClientEmail)
	key.TokenURI = strings.TrimSpace(key.TokenURI)
	if key.ClientEmail == "" || strings.TrimSpace(key.PrivateKey) == "" {
		return ServiceAccountKey{}, authConfigError("auth: service account key requires client_email and private_key",
			map[string]any{"project_id": key.ProjectID})
	}
	if key.TokenURI == "" {
		key.TokenURI = core.DefaultGoogleTokenURL
	}
	return key, nil
}
