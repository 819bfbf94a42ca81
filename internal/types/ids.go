package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewCandidateID generates a UUIDv7 candidate identifier.
// Time-ordered IDs keep registry listings in insertion order when sorted.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewCandidateID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewRuleID generates the short identifier embedded in a mined rule.
// Format: R-<8 hex chars>. Distinct from the candidate id.
func NewRuleID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "R-" + hex[:8]
}

// ParseCandidateID validates a candidate identifier. Any UUID version is
// accepted since imported registries may carry v4 ids.
func ParseCandidateID(s string) (string, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return s, nil
}

// CandidateIDTime extracts the timestamp embedded in a UUIDv7 candidate id.
// Returns zero time for invalid or non-v7 UUIDs; caller should check IsZero().
func CandidateIDTime(id string) time.Time {
	u, err := uuid.Parse(id)
	if err != nil || u.Version() != 7 {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
