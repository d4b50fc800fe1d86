package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c := NewCipher(StaticKey("k3y"))
	enc := c.Encrypt("sk-ant-123456")
	assert.NotEqual(t, "sk-ant-123456", enc)

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-123456", dec)
}

func TestKnownVector(t *testing.T) {
	// "a" ^ "a" = 0x00, base64 "AA=="
	c := NewCipher(StaticKey("a"))
	assert.Equal(t, "AA==", c.Encrypt("a"))
}

func TestWrongKeyGarbles(t *testing.T) {
	enc := NewCipher(StaticKey("one")).Encrypt("secret-value")
	dec, err := NewCipher(StaticKey("two")).Decrypt(enc)
	require.NoError(t, err)
	assert.NotEqual(t, "secret-value", dec)
}

func TestDecryptInvalidBase64(t *testing.T) {
	_, err := NewCipher(StaticKey("k")).Decrypt("%%%")
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	t.Setenv("TEST_DECAYCLOCK_KEY", "from-env")
	assert.Equal(t, []byte("from-env"), EnvKey{Var: "TEST_DECAYCLOCK_KEY"}.Key())

	t.Setenv("TEST_DECAYCLOCK_KEY", "")
	assert.Equal(t, []byte("fallback"), EnvKey{Var: "TEST_DECAYCLOCK_KEY", Default: "fallback"}.Key())
	assert.Equal(t, []byte(DefaultKey), EnvKey{Var: "TEST_DECAYCLOCK_KEY"}.Key())
}

func TestEmptyKeyUsesDefault(t *testing.T) {
	a := NewCipher(StaticKey("")).Encrypt("value")
	b := NewCipher(StaticKey(DefaultKey)).Encrypt("value")
	assert.Equal(t, a, b)
}
