package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/username/kncbank/web/src/models"
	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 32
	sessionKeyInfo  = "kncbank-web session token v1"
	csrfKeyInfo     = "kncbank-web csrf token v1"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidCSRF  = errors.New("invalid csrf token")
)

// SessionClaims is the payload of the session cookie. Subject carries the
// identity and ID the server-side session row.
type SessionClaims struct {
	jwt.RegisteredClaims
}

func (c *SessionClaims) Identity() models.Identity { return models.Identity(c.Subject) }

type AuthService struct {
	sessionKey []byte
	csrfKey    []byte
	expiry     time.Duration
	now        func() time.Time
}

// NewAuthService derives independent signing keys for session tokens and
// CSRF tokens from one secret.
func NewAuthService(secret string, expiry time.Duration) (*AuthService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes", minSecretLength)
	}
	sessionKey, err := deriveKey(secret, sessionKeyInfo)
	if err != nil {
		return nil, err
	}
	csrfKey, err := deriveKey(secret, csrfKeyInfo)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		sessionKey: sessionKey,
		csrfKey:    csrfKey,
		expiry:     expiry,
		now:        time.Now,
	}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Expiry is the lifetime given to new session tokens.
func (a *AuthService) Expiry() time.Duration { return a.expiry }

// GenerateSessionToken signs a token binding identity to sessionID.
func (a *AuthService) GenerateSessionToken(identity models.Identity, sessionID string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.expiry)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.sessionKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (a *AuthService) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.sessionKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateCSRFToken returns "<nonce>.<mac>"; only tokens minted by this
// service pass ValidateCSRFToken.
func (a *AuthService) GenerateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(b)
	return nonce + "." + a.csrfMAC(nonce), nil
}

func (a *AuthService) ValidateCSRFToken(token string) error {
	nonce, mac, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return ErrInvalidCSRF
	}
	if !hmac.Equal([]byte(mac), []byte(a.csrfMAC(nonce))) {
		return ErrInvalidCSRF
	}
	return nil
}

func (a *AuthService) csrfMAC(nonce string) string {
	h := hmac.New(sha256.New, a.csrfKey)
	h.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
