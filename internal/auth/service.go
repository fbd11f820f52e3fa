package auth

import (
	"errors"
	"strings"
)

var (
	// ErrTokenRequired is returned when no token was presented but one is mandatory.
	ErrTokenRequired = errors.New("token required")
	// ErrIdentityMismatch is returned when an explicit identity differs from the token subject.
	ErrIdentityMismatch = errors.New("identity does not match token")
	// ErrEmptyIdentity is returned when neither the client nor a token names an identity.
	ErrEmptyIdentity = errors.New("identity is required")
)

// Service resolves the identity a connection or request acts as.
type Service struct {
	jwtConfig *JWTConfig
	required  bool
}

// NewService creates an auth service. With required set, every identity must be backed by a token.
func NewService(jwtConfig *JWTConfig, required bool) *Service {
	return &Service{
		jwtConfig: jwtConfig,
		required:  required,
	}
}

// Required reports whether tokens are mandatory.
func (s *Service) Required() bool {
	return s.required
}

// IssueToken mints a token for identity.
func (s *Service) IssueToken(identity string) (string, error) {
	return GenerateToken(s.jwtConfig, identity)
}

// ValidateToken validates a JWT token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// ResolveIdentity decides which identity an announce acts as.
// A presented token always wins; an explicit identity must then agree with it.
// Without a token the explicit identity is trusted unless tokens are required.
func (s *Service) ResolveIdentity(identity, token string) (string, error) {
	identity = strings.TrimSpace(identity)

	if token == "" {
		if s.required {
			return "", ErrTokenRequired
		}
		if identity == "" {
			return "", ErrEmptyIdentity
		}
		return identity, nil
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		return "", err
	}
	if identity != "" && identity != claims.Identity() {
		return "", ErrIdentityMismatch
	}
	return claims.Identity(), nil
}
