package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/classroll/apiserver/types"
)

// DefaultExpiration applies when a token request names none.
const DefaultExpiration = "30d"

const day = 24 * time.Hour

var expirationUnits = map[byte]time.Duration{
	'h': time.Hour,
	'd': day,
	'w': 7 * day,
	'y': 365 * day,
}

// MaxExpiration is the longest finite expiration accepted.
const MaxExpiration = 100 * 365 * day

// Expiration is a parsed expiration spec such as "12h", "30d" or
// "never_expires".
type Expiration struct {
	Spec     string
	Duration time.Duration
	Never    bool
}

// ParseExpiration parses spec. An empty spec means DefaultExpiration.
func ParseExpiration(spec string) (Expiration, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if spec == "" {
		spec = DefaultExpiration
	}
	if spec == types.NeverExpires {
		return Expiration{Spec: spec, Never: true}, nil
	}
	if len(spec) < 2 {
		return Expiration{}, fmt.Errorf("invalid expiration %q", spec)
	}

	unit, ok := expirationUnits[spec[len(spec)-1]]
	if !ok {
		return Expiration{}, fmt.Errorf("invalid expiration unit in %q: want h, d, w or y", spec)
	}
	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n < 1 {
		return Expiration{}, fmt.Errorf("invalid expiration %q", spec)
	}
	if n > int(MaxExpiration/unit) {
		return Expiration{}, fmt.Errorf("expiration %q exceeds 100y", spec)
	}
	return Expiration{Spec: spec, Duration: time.Duration(n) * unit}, nil
}

// ClampDays limits e to the given number of days. A never-expiring spec
// becomes exactly that many days.
func (e Expiration) ClampDays(days int) Expiration {
	limit := time.Duration(days) * day
	if e.Never || e.Duration > limit {
		return Expiration{Spec: fmt.Sprintf("%dd", days), Duration: limit}
	}
	return e
}

// ExpiresAt returns the absolute expiry from now, or the zero time when e
// never expires.
func (e Expiration) ExpiresAt(now time.Time) time.Time {
	if e.Never {
		return time.Time{}
	}
	return now.Add(e.Duration)
}
