package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====
//
// Session issuance lives with the identity frontend; this service only
// verifies tokens and extracts the account id.

type AuthManager struct {
	secret []byte
	cookie string
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret), cookie: "app_session"}
}

type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Mint issues a session token; used by dev tooling and tests.
func (a *AuthManager) Mint(accountID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// AccountID validates the request's session and returns the account id.
func (a *AuthManager) AccountID(r *http.Request) (string, error) {
	tok := bearerToken(r)
	if tok == "" {
		if c, err := r.Cookie(a.cookie); err == nil {
			tok = c.Value
		}
	}
	if tok == "" {
		return "", errors.New("no session token")
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid session token")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
