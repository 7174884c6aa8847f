// Package token issues and verifies the compact signed capability tokens
// that authorize widget calls scoped to one (site, visitor, thread) tuple.
// Verification is purely computational: no storage lookup, no revocation
// list; the compromise window is bounded by the TTL.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	DefaultTTL = time.Hour
	MinTTL     = 5 * time.Minute

	// expiryGrace absorbs clock skew between servers and widgets.
	expiryGrace = 60 * time.Second

	issuerName = "widget-chat"
)

var (
	ErrMalformed       = errors.New("token: malformed")
	ErrSignature       = errors.New("token: signature mismatch")
	ErrExpired         = errors.New("token: expired")
	ErrInvalidAudience = errors.New("token: invalid audience")
	ErrThreadMismatch  = errors.New("token: thread mismatch")
)

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type Claims struct {
	Issuer    string `json:"iss"`
	Audience  string `json:"aud"`
	Subject   string `json:"sub"`
	Thread    string `json:"thread"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti"`
}

// CheckAudience verifies the token was issued for the requesting site.
// The error is distinct from a signature failure to aid debugging without
// leaking secret material.
func (c Claims) CheckAudience(siteKey string) error {
	if c.Audience != siteKey {
		return ErrInvalidAudience
	}
	return nil
}

func (c Claims) CheckThread(threadID string) error {
	if c.Thread != threadID {
		return ErrThreadMismatch
	}
	return nil
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl < MinTTL {
		ttl = MinTTL
	}
	return &Service{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
}

func NewWithClock(secret []byte, ttl time.Duration, now func() time.Time) *Service {
	s := New(secret, ttl)
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue builds a signed token binding (siteKey, visitorID, threadID) with
// the given ttl. A zero ttl uses the service default; anything below the
// floor is raised to it.
func (s *Service) Issue(siteKey, visitorID, threadID string, ttl time.Duration) (string, Claims, error) {
	if siteKey == "" || visitorID == "" || threadID == "" {
		return "", Claims{}, fmt.Errorf("token: site, visitor and thread are required")
	}

	if ttl <= 0 {
		ttl = s.ttl
	}
	if ttl < MinTTL {
		ttl = MinTTL
	}

	iat := s.now().UTC().Unix()
	claims := Claims{
		Issuer:    issuerName,
		Audience:  siteKey,
		Subject:   visitorID,
		Thread:    threadID,
		IssuedAt:  iat,
		ExpiresAt: iat + int64(ttl/time.Second),
		ID:        tokenID(siteKey, threadID, iat),
	}

	headerJSON, err := json.Marshal(header{Alg: "HS256", Typ: "CAP"})
	if err != nil {
		return "", Claims{}, err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", Claims{}, err
	}

	headerPart := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadPart := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signature := s.sign(siteKey, headerPart+"."+payloadPart)
	sigPart := base64.RawURLEncoding.EncodeToString(signature)

	return headerPart + "." + payloadPart + "." + sigPart, claims, nil
}

// Parse verifies the signature and expiry of raw and returns its claims.
// Audience and thread binding are checked separately by the caller so the
// failures stay distinguishable.
func (s *Service) Parse(raw string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 {
		return Claims{}, ErrMalformed
	}

	// Strict decoding rejects non-zero trailing padding bits, so any bit
	// flip in a segment fails either decoding or the signature check.
	payloadJSON, err := base64.RawURLEncoding.Strict().DecodeString(parts[1])
	if err != nil {
		return Claims{}, ErrMalformed
	}

	// The audience decides which derived key signs the token, so it has to
	// be read before the signature can be recomputed. A forged audience
	// simply selects a key the signature cannot match.
	var probe struct {
		Audience string `json:"aud"`
	}
	if err := json.Unmarshal(payloadJSON, &probe); err != nil {
		return Claims{}, ErrMalformed
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrMalformed
	}

	expected := s.sign(probe.Audience, parts[0]+"."+parts[1])
	if !hmac.Equal(sig, expected) {
		return Claims{}, ErrSignature
	}

	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Claims{}, ErrMalformed
	}
	if claims.ExpiresAt == 0 {
		return Claims{}, ErrMalformed
	}

	if s.now().UTC().After(time.Unix(claims.ExpiresAt, 0).Add(expiryGrace)) {
		return Claims{}, ErrExpired
	}

	return claims, nil
}

// sign computes HMAC-SHA256 over signingInput using a per-site key derived
// from the server secret. A leaked per-site key does not compromise tokens
// of other sites.
func (s *Service) sign(siteKey, signingInput string) []byte {
	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, s.secret, nil, []byte(siteKey))
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf only fails when more than 255 blocks are requested.
		copy(key, s.secret)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}

// tokenID derives jti deterministically from site, thread and issue time so
// log lines for the same issuance correlate. It plays no part in replay
// protection.
func tokenID(siteKey, threadID string, iat int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", siteKey, threadID, iat)))
	return hex.EncodeToString(sum[:])[:16]
}
