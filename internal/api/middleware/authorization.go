package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	iternal_jwt "widget-chat-backend/internal/jwt"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// ValidateOperatorJWT guards the operator console routes. The token is
// issued by the dashboard's own session auth; here it is only verified and
// the operator identity stashed on the request context.
func ValidateOperatorJWT(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims, err := iternal_jwt.ParseToken(tokenString)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		expires, ok := claims["exp"].(float64)
		if !ok || time.Now().Unix() > int64(expires) {
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return
		}

		operator, err := iternal_jwt.OperatorFromClaims(claims)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), operatorContextKey, operator)))
	}
}

// OperatorFromRequest returns the identity stashed by ValidateOperatorJWT.
func OperatorFromRequest(r *http.Request) (iternal_jwt.Operator, bool) {
	operator, ok := r.Context().Value(operatorContextKey).(iternal_jwt.Operator)
	return operator, ok
}
