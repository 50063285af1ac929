package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
)

// Claim names carried by blog tokens.
const (
	ClaimUserID = "user_id"
	ClaimName   = "name"
)

// AuthTokenHeader is accepted alongside the bearer header and the jwt cookie.
const AuthTokenHeader = "X-Auth-Token"

// Identity is the caller resolved from a verified token.
type Identity struct {
	UserID string
	Name   string
}

// Auth verifies HS256 tokens issued by the account service.
type Auth struct {
	jwt *jwtauth.JWTAuth
}

func NewAuth(secret string) *Auth {
	return &Auth{jwt: jwtauth.New("HS256", []byte(secret), nil)}
}

// IssueToken signs a token for the given user. Used by tests and local tooling.
func (a *Auth) IssueToken(userID, name string) (string, error) {
	_, token, err := a.jwt.Encode(map[string]interface{}{
		ClaimUserID: userID,
		ClaimName:   name,
	})
	return token, err
}

func tokenFromAuthHeader(r *http.Request) string {
	return r.Header.Get(AuthTokenHeader)
}

// Verifier decodes a token if one is present. It never rejects a request.
func (a *Auth) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(a.jwt, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, tokenFromAuthHeader)
}

// Authenticator rejects requests without a valid token naming a user. Every
// rejection gets the same JSON 401 body.
func (a *Auth) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			renderMessage(w, r, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the caller when the verifier accepted a token
// carrying a user id.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return Identity{}, false
	}
	userID, _ := claims[ClaimUserID].(string)
	if userID == "" {
		return Identity{}, false
	}
	name, _ := claims[ClaimName].(string)
	return Identity{UserID: userID, Name: name}, true
}
