// Package jwt verifies operator dashboard tokens. The tokens are issued by
// the unrelated operator session-auth system; this subsystem only needs to
// validate them and read the operator's identity.
package jwt

import (
	"fmt"
	"time"

	"widget-chat-backend/internal/env"

	"github.com/golang-jwt/jwt"
)

type Operator struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	SiteKey string `json:"siteKey"`
}

var secretOverride string

// SetSecret overrides the signing secret, used by tests.
func SetSecret(secret string) {
	secretOverride = secret
}

func signingSecret() string {
	if secretOverride != "" {
		return secretOverride
	}
	return env.Get(env.OperatorSecret)
}

func CreateToken(op Operator, validUntil int64) (string, error) {
	secret := signingSecret()
	if secret == "" {
		return "", fmt.Errorf("operator secret not configured")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(15 * time.Minute).Unix()
	}

	claims := jwt.MapClaims{
		"id":      op.ID,
		"email":   op.Email,
		"siteKey": op.SiteKey,
		"exp":     validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(tokenString string) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	secret := signingSecret()
	if secret == "" {
		return nil, fmt.Errorf("operator secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// OperatorFromClaims extracts the operator identity, failing when the
// required identifiers are missing.
func OperatorFromClaims(claims jwt.MapClaims) (Operator, error) {
	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	siteKey, _ := claims["siteKey"].(string)

	if id == "" || siteKey == "" {
		return Operator{}, fmt.Errorf("token missing identifiers")
	}

	return Operator{ID: id, Email: email, SiteKey: siteKey}, nil
}
