// Package token issues and parses the signed bearer tokens handed out at
// login. Tokens are HS256 JWTs carrying iss, sub, iat and exp; nothing about
// them is stored server-side.
package token

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-token-auth/internal/model"
)

// MinSecretLength is the smallest accepted HMAC secret, in bytes (256 bits).
const MinSecretLength = 32

var setPrecision sync.Once

// usePrecision switches jwt's package-wide NumericDate encoding to
// microseconds. exp and iat carry sub-second fractions; decoding goes
// through float64, so parsed values are rounded back to the millisecond.
func usePrecision() {
	setPrecision.Do(func() {
		jwt.TimePrecision = time.Microsecond
	})
}

type Option func(*Codec)

// WithClock replaces the clock used to check expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

type Codec struct {
	issuer     string
	key        []byte
	expiration time.Duration
	now        func() time.Time
}

func NewCodec(issuer string, secret string, expiration time.Duration, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(issuer) == "" {
		return nil, errors.New("token issuer is required")
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	expiration = expiration.Truncate(time.Millisecond)
	if expiration <= 0 {
		return nil, errors.New("token expiration must be at least one millisecond")
	}

	usePrecision()

	codec := &Codec{
		issuer:     issuer,
		key:        []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}

	return codec, nil
}

func (c *Codec) Expiration() time.Duration {
	return c.expiration
}

// Now returns the codec's current time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// ExpiryFor returns the exp claim a token issued at now would carry.
func (c *Codec) ExpiryFor(now time.Time) time.Time {
	return now.Truncate(time.Millisecond).Add(c.expiration)
}

// Issue signs a token for subject valid from now until now+expiration.
// now is truncated to the millisecond.
func (c *Codec) Issue(subject string, now time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: token subject is required", model.ErrInvalidInput)
	}
	now = now.Truncate(time.Millisecond)

	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.expiration)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies tokenString and returns its claims. Errors wrap one of
// model.ErrTokenMalformed, model.ErrTokenSignatureInvalid or
// model.ErrTokenExpired.
func (c *Codec) Parse(tokenString string) (model.TokenClaims, error) {
	registered := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, registered, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		// Time claims are checked below at millisecond precision.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return model.TokenClaims{}, classify(err)
	}
	if !parsed.Valid {
		return model.TokenClaims{}, model.ErrTokenSignatureInvalid
	}

	if registered.ExpiresAt == nil || registered.IssuedAt == nil {
		return model.TokenClaims{}, fmt.Errorf("%w: missing time claims", model.ErrTokenMalformed)
	}
	if strings.TrimSpace(registered.Subject) == "" {
		return model.TokenClaims{}, fmt.Errorf("%w: missing subject", model.ErrTokenMalformed)
	}
	if registered.Issuer != c.issuer {
		return model.TokenClaims{}, fmt.Errorf("%w: unexpected issuer", model.ErrTokenMalformed)
	}

	claims := model.TokenClaims{
		Issuer:    registered.Issuer,
		Subject:   registered.Subject,
		IssuedAt:  toMillis(registered.IssuedAt.Time),
		ExpiresAt: toMillis(registered.ExpiresAt.Time),
	}

	// No leeway: the token is dead from exp onwards.
	if !c.now().Before(claims.ExpiresAt) {
		return model.TokenClaims{}, model.ErrTokenExpired
	}

	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}
	return c.key, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return model.ErrTokenSignatureInvalid
	default:
		return fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}
}

// toMillis undoes the float rounding of NumericDate decoding.
func toMillis(t time.Time) time.Time {
	return t.Round(time.Millisecond).UTC()
}
