package play

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/billing"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/security"
)

const (
	scopeAndroidPublisher = "https://www.googleapis.com/auth/androidpublisher"
	defaultTokenURL       = "https://oauth2.googleapis.com/token"
)

// Credentials selects how API calls are authorized. AccessToken wins over
// a service account.
type Credentials struct {
	AccessToken string
	// ServiceAccountEmail is needed only when KeyFile holds a bare PEM key.
	ServiceAccountEmail string
	// KeyFile is a service account JSON key or a PEM private key.
	KeyFile string
}

type serviceAccountKey struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// TokenSource builds an oauth2 token source for the androidpublisher scope.
func TokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	if creds.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken}), nil
	}
	if creds.KeyFile == "" {
		return nil, billing.ErrNoCredentials
	}

	data, err := security.SafeReadFile(creds.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}

	conf := &jwt.Config{
		Email:    creds.ServiceAccountEmail,
		Scopes:   []string{scopeAndroidPublisher},
		TokenURL: defaultTokenURL,
	}

	var key serviceAccountKey
	if json.Unmarshal(data, &key) == nil && key.PrivateKey != "" {
		conf.Email = key.ClientEmail
		conf.PrivateKey = []byte(key.PrivateKey)
		conf.PrivateKeyID = key.PrivateKeyID
		if key.TokenURI != "" {
			conf.TokenURL = key.TokenURI
		}
	} else {
		conf.PrivateKey = data
	}

	if conf.Email == "" {
		return nil, errors.New("service account email is required")
	}
	return conf.TokenSource(ctx), nil
}
