package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher("unit-test-key")
	require.NoError(t, err)

	passwords := []string{
		"hunter2",
		"p@ssw0rd with spaces",
		"ünïcödé-пароль-密码",
		"a",
		"longer password with some entropy 1234567890!@#$%^&*()",
	}

	for _, p := range passwords {
		encrypted, err := c.Encrypt(p)
		require.NoError(t, err)
		assert.NotEqual(t, p, encrypted, "ciphertext must differ from plaintext")
		assert.Equal(t, p, c.Decrypt(encrypted))
	}
}

func TestEncryptEmptyPassword(t *testing.T) {
	c, err := NewCipher("unit-test-key")
	require.NoError(t, err)

	encrypted, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)
	assert.Equal(t, "", c.Decrypt(""))
}

func TestDecryptLegacyPlaintext(t *testing.T) {
	c, err := NewCipher("unit-test-key")
	require.NoError(t, err)

	// Values that predate encryption come back unchanged.
	assert.Equal(t, "plaintext-password", c.Decrypt("plaintext-password"))
	assert.Equal(t, "not base64 at all!!", c.Decrypt("not base64 at all!!"))

	// Valid base64 that is not a ciphertext also falls through.
	short := base64.StdEncoding.EncodeToString([]byte("xy"))
	assert.Equal(t, short, c.Decrypt(short))

	// A ciphertext produced under a different key fails authentication and
	// falls back rather than erroring.
	other, err := NewCipher("a-different-key")
	require.NoError(t, err)
	encrypted, err := other.Encrypt("secret")
	require.NoError(t, err)
	assert.Equal(t, encrypted, c.Decrypt(encrypted))
}

func TestEncryptIsNondeterministic(t *testing.T) {
	c, err := NewCipher("unit-test-key")
	require.NoError(t, err)

	first, err := c.Encrypt("same-password")
	require.NoError(t, err)
	second, err := c.Encrypt("same-password")
	require.NoError(t, err)

	// Fresh nonce per call: equal plaintexts never share ciphertext.
	assert.NotEqual(t, first, second)
	assert.Equal(t, "same-password", c.Decrypt(first))
	assert.Equal(t, "same-password", c.Decrypt(second))
}

func TestNewCipherKeyHandling(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)

	// A base64-encoded 32-byte key is accepted directly.
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	c, err := NewCipher(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	encrypted, err := c.Encrypt("secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", c.Decrypt(encrypted))
}

func TestPackageLevelHelpers(t *testing.T) {
	defaultCipher = nil

	// Without initialization, decryption degrades to passthrough and
	// encryption refuses to proceed.
	assert.Equal(t, "as-is", DecryptPassword("as-is"))
	_, err := EncryptPassword("secret")
	assert.Error(t, err)

	require.NoError(t, Initialize("unit-test-key"))
	encrypted, err := EncryptPassword("secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", DecryptPassword(encrypted))
}
