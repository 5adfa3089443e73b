package jwt

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT(key string) *JWT {
	conf := viper.New()
	conf.Set("security.jwt.key", key)
	return NewJwt(conf)
}

func TestJWT_RoundTrip(t *testing.T) {
	j := newTestJWT("secret")
	require.True(t, j.Enabled())

	token, err := j.GenToken("dashboard", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := j.ParseToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
}

func TestJWT_Rejects(t *testing.T) {
	j := newTestJWT("secret")

	_, err := j.ParseToken("")
	assert.Error(t, err)

	expired, err := j.GenToken("dashboard", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = j.ParseToken(expired)
	assert.Error(t, err)

	other, err := newTestJWT("other").GenToken("dashboard", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = j.ParseToken(other)
	assert.Error(t, err)

	assert.False(t, newTestJWT("").Enabled())
}
