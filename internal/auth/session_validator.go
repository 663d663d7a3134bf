package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSessionIssuer = "tauth"
	authorizationHeader  = "Authorization"
	bearerScheme         = "bearer"
)

var (
	// ErrMissingSessionSigningKey is returned when the HS256 secret shared with the session issuer is empty.
	ErrMissingSessionSigningKey = errors.New("auth: session signing secret required")
	// ErrMissingSessionCookieName is returned when no session cookie name is configured.
	ErrMissingSessionCookieName = errors.New("auth: session cookie name required")
	// ErrMissingSessionToken means the request carried neither a session cookie nor a bearer token.
	ErrMissingSessionToken = errors.New("auth: no session presented")
	// ErrInvalidSessionToken covers bad signatures, foreign issuers and malformed tokens.
	ErrInvalidSessionToken = errors.New("auth: session rejected")
	// ErrExpiredSessionToken means the player has to sign in again.
	ErrExpiredSessionToken = errors.New("auth: session expired")
	// ErrMissingSessionSubject means the session names no player.
	ErrMissingSessionSubject = errors.New("auth: session carries no player identity")
)

// SessionClaims is the JWT payload of a GameDex session. UserID is the
// provider-qualified player id; Subject is used when UserID is absent.
type SessionClaims struct {
	UserID          string `json:"user_id"`
	UserEmail       string `json:"user_email"`
	UserDisplayName string `json:"user_display_name"`
	jwt.RegisteredClaims
}

// PlayerID returns the identity the session vouches for.
func (c SessionClaims) PlayerID() string {
	if userID := strings.TrimSpace(c.UserID); userID != "" {
		return userID
	}
	return strings.TrimSpace(c.Subject)
}

// SessionValidatorConfig configures SessionValidator. An empty Issuer accepts
// sessions minted by the "tauth" service.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator checks player sessions on incoming API requests.
type SessionValidator struct {
	signingSecret []byte
	issuer        string
	cookieName    string
	clock         func() time.Time
}

func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		cookieName:    cookieName,
		clock:         clock,
	}, nil
}

// ValidateToken verifies an HS256 session token and returns its claims.
func (v *SessionValidator) ValidateToken(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := SessionClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (interface{}, error) {
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, ErrExpiredSessionToken
	case err != nil:
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if claims.PlayerID() == "" {
		return SessionClaims{}, ErrMissingSessionSubject
	}
	return claims, nil
}

// ValidateRequest reads the session from the GameDex cookie, falling back to
// an "Authorization: Bearer" header for non-browser clients.
func (v *SessionValidator) ValidateRequest(r *http.Request) (SessionClaims, error) {
	if r == nil {
		return SessionClaims{}, ErrMissingSessionToken
	}
	return v.ValidateToken(v.sessionToken(r))
}

func (v *SessionValidator) sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(v.cookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value
	}
	scheme, credentials, found := strings.Cut(strings.TrimSpace(r.Header.Get(authorizationHeader)), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return credentials
}
