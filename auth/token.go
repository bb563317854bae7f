/*
Package auth provides session tokens, login rate limiting and the admin check.

PURPOSE:
  The portal has no API tokens, so every refresh must replay the user's
  portal password. The session token therefore carries the password,
  encrypted, inside a signed JWT. A token is only accepted while it is the
  one stored for the user: logging out or a failed portal login invalidates
  it server-side.

TOKEN FORMAT (HS256 JWT):
  sub  username
  pwd  base64url(nonce || AES-256-GCM(password))
  jti  random UUID, so two logins never yield the same token
  iat  issue time
  exp  optional, from token_ttl

KEYS:
  Both the signing key and the AES key are derived from the configured
  encryption key with SHA-256 under distinct labels.

SEE ALSO:
  - ratelimit.go: per-client login throttling
  - admin.go: admin credential check
*/
package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quelio/engine/accounting"
)

var (
	// ErrInvalidToken is returned for tokens that fail verification or are
	// no longer the stored token of their user.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingKey is returned when no encryption key is configured.
	ErrMissingKey = errors.New("encryption key is required")
)

// Claims are the JWT claims of a session token.
type Claims struct {
	Password string `json:"pwd"`
	jwt.RegisteredClaims
}

// Credentials are the portal credentials recovered from a token.
type Credentials struct {
	Username string
	Password string
}

// =============================================================================
// TOKENS - Issue and parse
// =============================================================================

// Tokens issues and parses session tokens.
type Tokens struct {
	signingKey []byte
	aead       cipher.AEAD
	ttl        time.Duration
	now        func() time.Time
}

// NewTokens derives the keys from encryptionKey. A zero ttl issues tokens
// without expiry.
func NewTokens(encryptionKey string, ttl time.Duration) (*Tokens, error) {
	if encryptionKey == "" {
		return nil, ErrMissingKey
	}
	signing := sha256.Sum256([]byte("quelio-token-signing:" + encryptionKey))
	sealing := sha256.Sum256([]byte(encryptionKey))

	block, err := aes.NewCipher(sealing[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Tokens{signingKey: signing[:], aead: aead, ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of t using now as its clock.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	copied := *t
	copied.now = now
	return &copied
}

// Issue creates a token for username carrying the encrypted password.
func (t *Tokens) Issue(username, password string) (string, error) {
	sealed, err := t.seal(password)
	if err != nil {
		return "", err
	}

	issued := t.now()
	claims := Claims{
		Password: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(issued),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issued.Add(t.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.signingKey)
}

// Parse verifies the signature and expiry and decrypts the password.
// It does not check the token against the store; see Authenticator.
func (t *Tokens) Parse(token string) (Credentials, error) {
	if token == "" {
		return Credentials{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Credentials{}, ErrInvalidToken
	}
	password, err := t.open(claims.Password)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Credentials{Username: claims.Subject, Password: password}, nil
}

func (t *Tokens) seal(plaintext string) (string, error) {
	nonce := make([]byte, t.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := t.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (t *Tokens) open(encoded string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	size := t.aead.NonceSize()
	if len(data) < size {
		return "", errors.New("ciphertext too short")
	}
	plain, err := t.aead.Open(nil, data[:size], data[size:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// =============================================================================
// AUTHENTICATOR - Tokens checked against the user store
// =============================================================================

// Authenticator validates tokens against the token stored for their user.
type Authenticator struct {
	Tokens *Tokens
	Users  accounting.UserStore
}

// Validate returns the credentials carried by token if it verifies and is
// still the stored token of its user.
func (a *Authenticator) Validate(ctx context.Context, token string) (Credentials, error) {
	creds, err := a.Tokens.Parse(token)
	if err != nil {
		return Credentials{}, err
	}

	rec, err := a.Users.GetUser(ctx, creds.Username)
	if errors.Is(err, accounting.ErrUserNotFound) {
		return Credentials{}, ErrInvalidToken
	}
	if err != nil {
		return Credentials{}, err
	}
	if rec.Token == "" || subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) != 1 {
		return Credentials{}, ErrInvalidToken
	}
	return creds, nil
}
