// Package authtoken validates bearer credentials presented at WebSocket
// connect time. It is validation-only: this service
// never mints user JWTs (that belongs to whatever identity provider issues
// them) — grounded on the teacher's internal/auth.ValidateJWT signing-method
// check, stripped of GenerateJWT and the goth OAuth provider wiring the
// teacher's own web login flow needs.
package authtoken

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentcomm/comm-server/internal/corerr"
	"github.com/agentcomm/comm-server/internal/project"
)

type apiKeyValidator interface {
	ValidateAPIKey(plaintext string) (projectID, keyID string, err error)
}

// Claims is the registered JWT claim set this service expects an identity
// provider to have issued.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller resolved from a bearer credential,
// regardless of whether it came from a JWT or an agent API key.
type Principal struct {
	ID        string
	Kind      string // "user" or "agent"
	ProjectID string // set only for Kind == "agent"
}

// Validator checks bearer credentials presented by WebSocket clients. It
// tries JWT validation first, then agent API-key validation,
// matching the Status Hub's "neither succeeds -> unauthenticated" fallback
// described in spec §4.7.
type Validator struct {
	jwtSecret []byte
	projects  apiKeyValidator
}

// New builds a Validator. jwtSecret is the shared HMAC secret configured
// for this deployment; projects resolves agent API keys.
func New(jwtSecret string, projects *project.Registry) *Validator {
	v := &Validator{jwtSecret: []byte(jwtSecret)}
	if projects != nil {
		v.projects = projects
	}
	return v
}

// Authenticate tries, in order, JWT validation and agent API-key
// validation against raw token material (with or without a "Bearer "
// prefix). It returns Unauthorized if neither recognizes the token.
func (v *Validator) Authenticate(token string) (*Principal, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, corerr.New(corerr.Unauthorized, "authtoken.Authenticate", "no credential supplied")
	}

	if claims, err := v.validateJWT(token); err == nil {
		return &Principal{ID: claims.UserID, Kind: "user"}, nil
	}

	if v.projects != nil {
		if projectID, keyID, err := v.projects.ValidateAPIKey(token); err == nil {
			return &Principal{ID: keyID, Kind: "agent", ProjectID: projectID}, nil
		}
	}

	return nil, corerr.New(corerr.Unauthorized, "authtoken.Authenticate", "credential did not validate as a user token or an agent API key")
}

// validateJWT parses tokenString as an HS256 JWT signed with v.jwtSecret.
func (v *Validator) validateJWT(tokenString string) (*Claims, error) {
	if len(v.jwtSecret) == 0 {
		return nil, fmt.Errorf("authtoken: no JWT secret configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("authtoken: invalid token")
	}
	return claims, nil
}
