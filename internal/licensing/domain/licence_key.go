package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidLicenceKey indicates a licence key that cannot be decoded.
	ErrInvalidLicenceKey = errors.New("invalid licence key format")

	// ErrInvalidSignature indicates the licence key signature did not verify.
	ErrInvalidSignature = errors.New("invalid licence key signature")

	// ErrKeyEntryUnsupported indicates the store flavor sells through in-app purchases.
	ErrKeyEntryUnsupported = errors.New("licence keys are not used by this store")
)

// LicenceKey is an offline licence for flavors without in-app purchases.
// The key string is "<base64url payload>.<base64url signature>".
type LicenceKey struct {
	ID       string    `json:"id"`
	Tier     string    `json:"tier"`
	Email    string    `json:"email,omitempty"`
	IssuedAt time.Time `json:"issued_at"`

	Payload   []byte `json:"-"`
	Signature []byte `json:"-"`
}

// SplitLicenceKey decodes the two parts of a key string.
func SplitLicenceKey(key string) (payload, signature []byte, err error) {
	head, tail, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || head == "" || tail == "" {
		return nil, nil, ErrInvalidLicenceKey
	}
	payload, err = base64.RawURLEncoding.DecodeString(head)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidLicenceKey, err)
	}
	signature, err = base64.RawURLEncoding.DecodeString(tail)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidLicenceKey, err)
	}
	return payload, signature, nil
}

// ContribStatus returns the permanent status code the key grants.
func (k *LicenceKey) ContribStatus() (ContribStatus, error) {
	tier, err := ParseLicenceStatus(k.Tier)
	if err != nil {
		return ContribDisabled, fmt.Errorf("%w: %w", ErrInvalidLicenceKey, err)
	}
	switch tier {
	case StatusContrib:
		return ContribEnabledPermanent, nil
	case StatusExtended:
		return ContribExtendedPermanent, nil
	case StatusProfessional:
		return ContribProfessional, nil
	default:
		return ContribDisabled, fmt.Errorf("%w: no tier", ErrInvalidLicenceKey)
	}
}
