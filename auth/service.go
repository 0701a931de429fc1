package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/mcp-protocol/authorization"
)

// Service derives the caller namespace from a JWT carried in request context.
// The namespace partitions credential storage per caller, so one server can
// hold Outlook accounts for several assistant users. Without a token, or when
// extraction fails, DefaultNamespace is used.
type Service struct {
	DefaultNamespace string
	// Parse turns a token string into claims. The default parses without
	// verification: the MCP auth middleware already validated the token.
	Parse func(token string) (jwt.MapClaims, error)
	// Extract pulls the namespace out of claims; bool reports success.
	Extract func(jwt.MapClaims) (string, bool)
}

// New returns a Service extracting the "email" claim, falling back to "sub".
func New() *Service {
	return &Service{
		DefaultNamespace: "default",
		Parse: func(token string) (jwt.MapClaims, error) {
			var claims jwt.MapClaims
			_, _, err := new(jwt.Parser).ParseUnverified(token, &claims)
			return claims, err
		},
		Extract: func(claims jwt.MapClaims) (string, bool) {
			if email, _ := claims["email"].(string); email != "" {
				return email, true
			}
			if sub, _ := claims["sub"].(string); sub != "" {
				return sub, true
			}
			return "", false
		},
	}
}

// Namespace resolves the caller namespace from the token the MCP auth
// middleware placed in ctx.
func (s *Service) Namespace(ctx context.Context) (string, error) {
	if s == nil {
		return "default", nil
	}
	value := ctx.Value(authorization.TokenKey)
	if value == nil {
		return s.DefaultNamespace, nil
	}
	var token string
	switch v := value.(type) {
	case string:
		token = v
	case *authorization.Token:
		token = v.Token
	default:
		return "", fmt.Errorf("unsupported token type %T", value)
	}
	if s.Parse != nil && s.Extract != nil {
		if claims, err := s.Parse(token); err == nil {
			if ns, ok := s.Extract(claims); ok && ns != "" {
				return ns, nil
			}
		}
	}
	return s.DefaultNamespace, nil
}
