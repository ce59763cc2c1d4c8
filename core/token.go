package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCodec issues and verifies HS256-signed tokens. It owns the signing
// secret and the expiry policy; issuance and verification are pure apart
// from reading the clock.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokenCodec builds a codec from the configured secret and TTL in seconds.
// Claims validation is disabled in the parser so that signature validity and
// temporal validity stay independent checks.
func NewTokenCodec(secret string, ttlSeconds int) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    time.Duration(ttlSeconds) * time.Second,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue produces a signed token embedding subject, the role snapshot,
// issuedAt=now and expiresAt=now+TTL.
func (c *TokenCodec) Issue(subject string, roles []Role, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   subject,
		"roles": RoleNames(roles),
		"iat":   now.Unix(),
		"exp":   now.Add(c.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// VerifyAndDecode parses the token, checks the MAC against the signing
// secret, and returns the embedded claims. Expiry is NOT checked here;
// callers use IsExpired explicitly. Unknown role strings are rejected at
// this trust boundary.
func (c *TokenCodec) VerifyAndDecode(tokenString string) (Claims, error) {
	parsed, err := c.parser.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, ErrInvalidSignature
		}
		return Claims{}, ErrTokenMalformed
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrTokenMalformed
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, ErrTokenMalformed
	}

	roles, err := rolesFromClaim(mc["roles"])
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}

	iat, err := claimUnix(mc["iat"])
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}
	exp, err := claimUnix(mc["exp"])
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}

	return Claims{
		Subject:   sub,
		Roles:     roles,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// IsExpired reports whether claims have expired at the given instant.
// A token is expired from the exact expiry instant onward.
func (c *TokenCodec) IsExpired(claims Claims, now time.Time) bool {
	return !now.Before(claims.ExpiresAt)
}

func rolesFromClaim(v interface{}) ([]Role, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, errors.New("roles claim missing or not a list")
	}
	names := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, errors.New("roles claim contains non-string entry")
		}
		names = append(names, s)
	}
	return ParseRoles(names)
}

func claimUnix(v interface{}) (time.Time, error) {
	f, ok := v.(float64)
	if !ok {
		return time.Time{}, errors.New("timestamp claim missing or not numeric")
	}
	return time.Unix(int64(f), 0), nil
}
