package postboard

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("secret", 42, []string{"create-servers"}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseAccessToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, []string{"create-servers"}, claims.Scopes)
	assert.Equal(t, "postboard", claims.Issuer)
	assert.NotEmpty(t, claims.Id)

	id, err := ExtractUserID(claims)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestAccessToken_UniqueIDs(t *testing.T) {
	first, err := GenerateAccessToken("secret", 1, nil, time.Hour)
	require.NoError(t, err)
	second, err := GenerateAccessToken("secret", 1, nil, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestGenerateAccessToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken("", 1, nil, time.Hour)
	assert.Error(t, err)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	valid, err := GenerateAccessToken("secret", 1, nil, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateAccessToken("secret", 1, nil, -time.Minute)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		StandardClaims: jwt.StandardClaims{Subject: "1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct {
		secret string
		token  string
	}{
		"wrong secret":   {secret: "other", token: valid},
		"expired":        {secret: "secret", token: expired},
		"garbage":        {secret: "secret", token: "a.b.c"},
		"none algorithm": {secret: "secret", token: unsigned},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestExtractUserID(t *testing.T) {
	for _, subject := range []string{"", "abc", "0", "-3"} {
		_, err := ExtractUserID(&Claims{StandardClaims: jwt.StandardClaims{Subject: subject}})
		assert.Error(t, err, subject)
	}
}
