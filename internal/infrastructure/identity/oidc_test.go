package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/infrastructure/config"
)

const testKID = "test-key"

func newTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		testKID: keyfunc.NewGivenRSA(&priv.PublicKey, keyfunc.GivenKeyOptions{Algorithm: "RS256"}),
	})

	v := NewVerifier(jwks, config.IdentityConfig{
		Issuer:   "https://issuer.example.com/",
		Audience: "taskflow",
	})
	return v, priv
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":            "auth0|123",
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada",
		"picture":        "https://example.com/ada.png",
		"iss":            "https://issuer.example.com/",
		"aud":            "taskflow",
		"iat":            now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	v, key := newTestVerifier(t)

	id, err := v.Verify(sign(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", id.Subject)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada", id.Name)
	assert.Equal(t, "https://example.com/ada.png", id.Picture)
	assert.True(t, id.EmailVerified)

	_, cached := v.keyCache.Load(testKID)
	assert.True(t, cached)
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	v, key := newTestVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
	}{
		{"expired", func() string {
			c := validClaims()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return sign(t, key, c)
		}},
		{"expired beyond skew", func() string {
			c := validClaims()
			c["exp"] = time.Now().Add(-2 * clockSkew).Unix()
			return sign(t, key, c)
		}},
		{"not yet valid", func() string {
			c := validClaims()
			c["nbf"] = time.Now().Add(2 * clockSkew).Unix()
			return sign(t, key, c)
		}},
		{"wrong audience", func() string {
			c := validClaims()
			c["aud"] = "someone-else"
			return sign(t, key, c)
		}},
		{"wrong issuer", func() string {
			c := validClaims()
			c["iss"] = "https://evil.example.com/"
			return sign(t, key, c)
		}},
		{"missing subject", func() string {
			c := validClaims()
			delete(c, "sub")
			return sign(t, key, c)
		}},
		{"wrong key", func() string {
			return sign(t, other, validClaims())
		}},
		{"hmac", func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
			token.Header["kid"] = testKID
			s, err := token.SignedString([]byte("secret"))
			require.NoError(t, err)
			return s
		}},
		{"garbage", func() string { return "not.a.token" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token())
			assert.Error(t, err)
		})
	}
}

func TestVerifyToleratesClockSkew(t *testing.T) {
	v, key := newTestVerifier(t)

	c := validClaims()
	c["exp"] = time.Now().Add(-clockSkew / 2).Unix()
	c["nbf"] = time.Now().Add(clockSkew / 2).Unix()
	c["iat"] = time.Now().Add(clockSkew / 2).Unix()

	_, err := v.Verify(sign(t, key, c))
	assert.NoError(t, err)
}

func TestVerifyReadsEmailVerified(t *testing.T) {
	v, key := newTestVerifier(t)

	tests := []struct {
		name  string
		claim interface{}
		want  bool
	}{
		{"bool", true, true},
		{"string", "true", true},
		{"false", false, false},
		{"absent", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClaims()
			if tt.claim == nil {
				delete(c, "email_verified")
			} else {
				c["email_verified"] = tt.claim
			}

			id, err := v.Verify(sign(t, key, c))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.EmailVerified)
		})
	}
}

func TestVerifyWithoutJWKS(t *testing.T) {
	v := NewVerifier(nil, config.IdentityConfig{})
	_, key := newTestVerifier(t)

	_, err := v.Verify(sign(t, key, validClaims()))
	assert.ErrorIs(t, err, errJWKSNotConfigured)
}
