package signup

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenIssuer generates signup tokens and their expiration dates
type TokenIssuer struct {
	ttl time.Duration
	now Clock
}

// NewTokenIssuer returns an issuer for the given time to live. A non
// positive ttl falls back to DefaultTokenExpiration.
func NewTokenIssuer(ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenExpiration
	}
	return &TokenIssuer{
		ttl: ttl,
		now: time.Now,
	}
}

// WithClock overrides the clock used to compute expiration dates.
func (i *TokenIssuer) WithClock(clock Clock) *TokenIssuer {
	if clock != nil {
		i.now = clock
	}
	return i
}

// TTL returns the configured time to live
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a random UUID v4 token and its expiration date
func (i *TokenIssuer) Issue() (string, time.Time, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate signup token")
	}
	return id.String(), i.now().Add(i.ttl), nil
}
