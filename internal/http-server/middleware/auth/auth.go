// Package auth attaches the caller's verified user id to the request context.
// Tokens are issued by the external identity service; this middleware only
// verifies the HMAC signature and expiry.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"eventReserver/internal/lib/api/response"
	"eventReserver/internal/lib/logger/sl"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoUserID = errors.New("token carries no user id")

type ctxKey struct{}

// UserRef accepts both numeric and string user ids in the token payload.
type UserRef string

func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserRef(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*u = UserRef(n.String())

	return nil
}

type Claims struct {
	UserID UserRef `json:"id,omitempty"`
	Email  string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func New(log *slog.Logger, secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(
			slog.String("component", "middleware/auth"),
		)

		fn := func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing bearer token"))
				return
			}

			userID, err := ParseUserID(token, secret)
			if err != nil {
				log.Warn("rejected token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		}

		return http.HandlerFunc(fn)
	}
}

// ParseUserID verifies the token and returns the user id it was issued for.
// The "id" claim wins over "sub".
func ParseUserID(token string, secret []byte) (string, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if claims.UserID != "" {
		return string(claims.UserID), nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}

	return "", ErrNoUserID
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ctxKey{}).(string)
	return userID, ok && userID != ""
}
