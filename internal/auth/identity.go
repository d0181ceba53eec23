package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthError marks a bad or missing credential. It is fatal to the session:
// callers surface it to the user and must not retry.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// Identity is the local user as asserted by the bearer token.
type Identity struct {
	UserID int
	Name   string
	Token  string
}

// FromToken decodes identity claims from a bearer token. The client holds no
// signing secret, so the signature is not verified here; the server verifies
// it at the websocket handshake and on every REST call. Expiry is checked
// locally to fail fast before dialing.
func FromToken(token string) (*Identity, error) {
	if token == "" {
		return nil, &AuthError{Reason: "missing token"}
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, &AuthError{Reason: fmt.Sprintf("malformed token: %v", err)}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &AuthError{Reason: "unexpected claims format"}
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if time.Now().After(exp.Time) {
			return nil, &AuthError{Reason: "token expired"}
		}
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, &AuthError{Reason: "invalid user ID in token"}
	}

	name, _ := claims["username"].(string)

	return &Identity{
		UserID: int(userIDFloat),
		Name:   name,
		Token:  token,
	}, nil
}
