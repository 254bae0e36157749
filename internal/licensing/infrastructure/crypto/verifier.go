package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/security"
)

// Verifier checks Ed25519 signatures of offline licence keys.
type Verifier struct {
	publicKey ed25519.PublicKey
}

// NewVerifierFromFile creates a verifier from a PEM-encoded public key file.
func NewVerifierFromFile(path string) (*Verifier, error) {
	data, err := security.SafeReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	publicKey, err := parsePublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &Verifier{publicKey: publicKey}, nil
}

// NewVerifierFromBase64 creates a verifier from a base64-encoded raw public key.
func NewVerifierFromBase64(encoded string) (*Verifier, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: got %d, want %d", len(raw), ed25519.PublicKeySize)
	}
	return &Verifier{publicKey: ed25519.PublicKey(raw)}, nil
}

// NewVerifierWithKey creates a verifier with a custom public key (for testing).
func NewVerifierWithKey(publicKey ed25519.PublicKey) *Verifier {
	return &Verifier{publicKey: publicKey}
}

// Verify decodes a licence key and checks its signature.
func (v *Verifier) Verify(key string) (*domain.LicenceKey, error) {
	payload, signature, err := domain.SplitLicenceKey(key)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(v.publicKey, payload, signature) {
		return nil, domain.ErrInvalidSignature
	}

	var licence domain.LicenceKey
	if err := json.Unmarshal(payload, &licence); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidLicenceKey, err)
	}
	if licence.ID == "" {
		return nil, fmt.Errorf("%w: missing id", domain.ErrInvalidLicenceKey)
	}
	licence.Payload = payload
	licence.Signature = signature
	return &licence, nil
}

// Sign produces a key string for a licence. Only used by key issuing tools
// and tests; the private key never ships with the service.
func Sign(privateKey ed25519.PrivateKey, licence domain.LicenceKey) (string, error) {
	payload, err := json.Marshal(licence)
	if err != nil {
		return "", err
	}
	signature := ed25519.Sign(privateKey, payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// parsePublicKey parses a PEM-encoded Ed25519 public key.
func parsePublicKey(pemData []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	keyData := block.Bytes

	// SubjectPublicKeyInfo for Ed25519 has a 12-byte header
	if len(keyData) == 44 {
		keyData = keyData[12:]
	}

	if len(keyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: got %d, want %d", len(keyData), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(keyData), nil
}
