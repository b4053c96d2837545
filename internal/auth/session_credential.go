package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionCookieName = "sessionid"

var (
	ErrMissingSessionToken   = errors.New("session credential: token required")
	ErrInvalidSessionToken   = errors.New("session credential: invalid token")
	ErrExpiredSessionToken   = errors.New("session credential: token expired")
	ErrMissingSessionSubject = errors.New("session credential: subject required")
)

// SessionClaims is the subset of a JWT session payload the client reads.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionCredentialConfig describes the hunt session presented on every
// request. Tokens shaped like a JWT are parsed for subject and expiry; the
// signature is only checked when SigningSecret is set. Any other token is
// treated as an opaque session id.
type SessionCredentialConfig struct {
	Token         string
	CookieName    string
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// SessionCredential attaches the session cookie to outgoing requests.
type SessionCredential struct {
	token      string
	cookieName string
	subject    string
	expiresAt  time.Time
	clock      func() time.Time
}

// NewSessionCredential validates the token and returns a credential.
func NewSessionCredential(cfg SessionCredentialConfig) (*SessionCredential, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrMissingSessionToken
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = defaultSessionCookieName
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	credential := &SessionCredential{
		token:      token,
		cookieName: cookieName,
		clock:      clock,
	}
	if strings.Count(token, ".") != 2 {
		return credential, nil
	}

	claims, err := parseSessionClaims(token, cfg.SigningSecret, strings.TrimSpace(cfg.Issuer), clock)
	if err != nil {
		return nil, err
	}
	credential.subject = strings.TrimSpace(claims.Subject)
	if credential.subject == "" {
		credential.subject = strings.TrimSpace(claims.UserID)
	}
	if credential.subject == "" {
		return nil, ErrMissingSessionSubject
	}
	if claims.ExpiresAt != nil {
		credential.expiresAt = claims.ExpiresAt.Time
	}
	return credential, nil
}

func parseSessionClaims(token string, secret []byte, issuer string, clock func() time.Time) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if len(secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
		}
		if claims.ExpiresAt != nil && !clock().Before(claims.ExpiresAt.Time) {
			return nil, ErrExpiredSessionToken
		}
	} else {
		parsed, err := jwt.ParseWithClaims(
			token,
			claims,
			func(t *jwt.Token) (interface{}, error) {
				if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, t.Method.Alg())
				}
				return secret, nil
			},
			jwt.WithTimeFunc(clock),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrExpiredSessionToken
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
		}
		if parsed == nil || !parsed.Valid {
			return nil, ErrInvalidSessionToken
		}
	}
	if issuer != "" && claims.Issuer != issuer {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}

// CookieName returns the cookie the token is sent in.
func (c *SessionCredential) CookieName() string {
	return c.cookieName
}

// Subject returns the JWT subject, or empty for opaque tokens.
func (c *SessionCredential) Subject() string {
	return c.subject
}

// ExpiresAt returns the token expiry, or the zero time when it has none.
func (c *SessionCredential) ExpiresAt() time.Time {
	return c.expiresAt
}

// Expired reports whether the token's expiry has passed.
func (c *SessionCredential) Expired() bool {
	return !c.expiresAt.IsZero() && !c.clock().Before(c.expiresAt)
}

// Apply adds the session cookie to header.
func (c *SessionCredential) Apply(header http.Header) {
	cookie := (&http.Cookie{Name: c.cookieName, Value: c.token}).String()
	if existing := header.Get("Cookie"); existing != "" {
		header.Set("Cookie", existing+"; "+cookie)
		return
	}
	header.Set("Cookie", cookie)
}
