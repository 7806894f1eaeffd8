package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestCipher_RoundTrip(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)
	require.True(t, c.Enabled())

	sealed, err := c.Encrypt("Quarterly planning")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "Quarterly")

	again, err := c.Encrypt("Quarterly planning")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly planning", plain)
}

func TestCipher_Nil(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	out, err := c.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = c.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestCipher_Errors(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)

	c, err := New(testKey)
	require.NoError(t, err)

	_, err = c.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrMalformed)

	sealed, err := c.Encrypt("secret")
	require.NoError(t, err)
	other, err := New([]byte(strings.Repeat("x", 32)))
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestCipher_List(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	sealed, err := c.EncryptList([]string{"alice@example.com", "bob@example.com"})
	require.NoError(t, err)

	items, err := c.DecryptList(sealed)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, items)

	empty, err := c.DecryptList("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	var plain *Cipher
	raw, err := plain.EncryptList(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}
