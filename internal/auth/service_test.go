package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
}

func signClaims(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, "u1")
	require.NoError(t, err)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Identity())
	require.Equal(t, "test", claims.Issuer)
}

func TestGenerateTokenRejectsEmptyIdentity(t *testing.T) {
	_, err := GenerateToken(testJWTConfig(), "")
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestValidateTokenFailures(t *testing.T) {
	cfg := testJWTConfig()

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "wrong secret",
			token: signClaims(t, "other", jwt.MapClaims{"sub": "u1", "iss": "test", "aud": "test", "exp": time.Now().Add(time.Hour).Unix()}),
		},
		{
			name:  "expired",
			token: signClaims(t, "test-secret-change-me", jwt.MapClaims{"sub": "u1", "iss": "test", "aud": "test", "exp": time.Now().Add(-time.Hour).Unix()}),
		},
		{
			name:  "wrong issuer",
			token: signClaims(t, "test-secret-change-me", jwt.MapClaims{"sub": "u1", "iss": "evil", "aud": "test", "exp": time.Now().Add(time.Hour).Unix()}),
		},
		{
			name:  "wrong audience",
			token: signClaims(t, "test-secret-change-me", jwt.MapClaims{"sub": "u1", "iss": "test", "aud": "other", "exp": time.Now().Add(time.Hour).Unix()}),
		},
		{
			name:  "no identity",
			token: signClaims(t, "test-secret-change-me", jwt.MapClaims{"iss": "test", "aud": "test", "exp": time.Now().Add(time.Hour).Unix()}),
		},
		{name: "garbage", token: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(cfg, tt.token)
			require.Error(t, err)
		})
	}
}

func TestValidateTokenLegacyUserClaim(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("s")}
	token := signClaims(t, "s", jwt.MapClaims{
		"user": map[string]any{"id": "64f0c2"},
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "64f0c2", claims.Identity())
}

func TestResolveIdentity(t *testing.T) {
	cfg := testJWTConfig()
	token, err := GenerateToken(cfg, "u1")
	require.NoError(t, err)

	optional := NewService(cfg, false)
	required := NewService(cfg, true)

	t.Run("explicit identity without token", func(t *testing.T) {
		identity, err := optional.ResolveIdentity(" u2 ", "")
		require.NoError(t, err)
		require.Equal(t, "u2", identity)
	})

	t.Run("empty identity without token", func(t *testing.T) {
		_, err := optional.ResolveIdentity("", "")
		require.ErrorIs(t, err, ErrEmptyIdentity)
	})

	t.Run("token required", func(t *testing.T) {
		_, err := required.ResolveIdentity("u1", "")
		require.ErrorIs(t, err, ErrTokenRequired)
	})

	t.Run("token subject wins", func(t *testing.T) {
		identity, err := required.ResolveIdentity("", token)
		require.NoError(t, err)
		require.Equal(t, "u1", identity)
	})

	t.Run("mismatching identity", func(t *testing.T) {
		_, err := optional.ResolveIdentity("u2", token)
		require.ErrorIs(t, err, ErrIdentityMismatch)
	})

	t.Run("issue token round trip", func(t *testing.T) {
		issued, err := required.IssueToken("u7")
		require.NoError(t, err)
		identity, err := required.ResolveIdentity("u7", issued)
		require.NoError(t, err)
		require.Equal(t, "u7", identity)
	})
}
