package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidState is returned when an OAuth state value fails verification.
var ErrInvalidState = errors.New("invalid oauth state")

const (
	stateIssuer = "luvo"
	stateTTL    = 10 * time.Minute
)

// StateSigner issues and verifies the OAuth `state` parameter as a short-lived
// HS256 token so no server-side session is needed to round-trip it.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewStateSigner(key []byte) *StateSigner {
	return &StateSigner{key: key, ttl: stateTTL, now: time.Now}
}

// TTL is how long an issued state stays valid.
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Issue returns a signed state and the random nonce it carries. The nonce is
// handed to the browser separately so the callback can tie the state to it.
func (s *StateSigner) Issue() (state, nonce string, err error) {
	now := s.now()
	nonce = uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        nonce,
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return state, nonce, nil
}

// Verify checks signature, issuer and expiry, and that the state carries
// nonce. An empty nonce never matches.
func (s *StateSigner) Verify(state, nonce string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.ID == "" || nonce == "" {
		return fmt.Errorf("%w: missing nonce", ErrInvalidState)
	}
	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(nonce)) != 1 {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}
	return nil
}

// ResolveSigningKey decodes a hex key, or generates a random 32-byte key when
// hexKey is empty. generated reports which happened so callers can warn.
func ResolveSigningKey(hexKey string) (key []byte, generated bool, err error) {
	if hexKey != "" {
		key, err = hex.DecodeString(hexKey)
		if err != nil {
			return nil, false, fmt.Errorf("decode signing key: %w", err)
		}
		return key, false, nil
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}
