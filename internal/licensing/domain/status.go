package domain

import (
	"fmt"
	"strings"
	"time"
)

// LicenceStatus is the licence tier a user has unlocked.
// Tiers are ordered: a higher value supersedes every lower one.
type LicenceStatus int

const (
	// StatusNone means no licence is active.
	StatusNone LicenceStatus = iota
	// StatusContrib is the entry tier unlocked by the premium purchase.
	StatusContrib
	// StatusExtended is unlocked by the extended purchase or the premium upgrade.
	StatusExtended
	// StatusProfessional is unlocked by a professional subscription.
	StatusProfessional
)

// RefundWindow is the grace period after the first purchase during which an
// unconfirmed purchase can still be revoked.
const RefundWindow = 172800000 * time.Millisecond

// Tiers lists all licence tiers from lowest to highest.
var Tiers = []LicenceStatus{StatusContrib, StatusExtended, StatusProfessional}

// String returns the tier name.
func (s LicenceStatus) String() string {
	switch s {
	case StatusContrib:
		return "CONTRIB"
	case StatusExtended:
		return "EXTENDED"
	case StatusProfessional:
		return "PROFESSIONAL"
	default:
		return "NONE"
	}
}

// IsNone reports whether no tier is active.
func (s LicenceStatus) IsNone() bool {
	return s == StatusNone
}

// SkuKeyword returns the substring that identifies SKUs granting this tier.
func (s LicenceStatus) SkuKeyword() string {
	switch s {
	case StatusContrib:
		return "premium"
	case StatusExtended:
		return "extended"
	case StatusProfessional:
		return "professional"
	default:
		return ""
	}
}

// Covers reports whether s grants at least the required tier.
func (s LicenceStatus) Covers(required LicenceStatus) bool {
	return s != StatusNone && s >= required
}

// ParseLicenceStatus parses a tier name case-insensitively.
func ParseLicenceStatus(name string) (LicenceStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CONTRIB":
		return StatusContrib, nil
	case "EXTENDED":
		return StatusExtended, nil
	case "PROFESSIONAL":
		return StatusProfessional, nil
	case "", "NONE":
		return StatusNone, nil
	default:
		return StatusNone, fmt.Errorf("unknown licence status %q", name)
	}
}

// ContribStatus is the persisted status code backing the licence tier.
type ContribStatus int

const (
	// ContribDisabled means no licence, or a licence that was revoked.
	ContribDisabled ContribStatus = 0
	// ContribLegacySecond marks users unlocked by a legacy campaign. They are
	// never downgraded by the refund window check.
	ContribLegacySecond ContribStatus = 2
	// ContribEnabledTemporary is a contrib purchase inside the refund window.
	ContribEnabledTemporary ContribStatus = 3
	// ContribEnabledPermanent is a contrib purchase confirmed after the refund window.
	ContribEnabledPermanent ContribStatus = 5
	// ContribExtendedTemporary is an extended purchase inside the refund window.
	ContribExtendedTemporary ContribStatus = 6
	// ContribExtendedPermanent is an extended purchase confirmed after the refund window.
	ContribExtendedPermanent ContribStatus = 7
	// ContribProfessional is an active professional subscription.
	ContribProfessional ContribStatus = 10
)

// LicenceStatus maps the status code to its tier.
func (c ContribStatus) LicenceStatus() LicenceStatus {
	switch {
	case c >= ContribProfessional:
		return StatusProfessional
	case c >= ContribExtendedTemporary:
		return StatusExtended
	case c > 0:
		return StatusContrib
	default:
		return StatusNone
	}
}

// IsTemporary reports whether the code is still subject to the refund window.
func (c ContribStatus) IsTemporary() bool {
	return c == ContribEnabledTemporary || c == ContribExtendedTemporary
}

// String returns a readable name for the code.
func (c ContribStatus) String() string {
	switch c {
	case ContribDisabled:
		return "disabled"
	case ContribLegacySecond:
		return "legacy"
	case ContribEnabledTemporary:
		return "enabled_temporary"
	case ContribEnabledPermanent:
		return "enabled_permanent"
	case ContribExtendedTemporary:
		return "extended_temporary"
	case ContribExtendedPermanent:
		return "extended_permanent"
	case ContribProfessional:
		return "professional"
	default:
		return fmt.Sprintf("contrib(%d)", int(c))
	}
}
