package fieldcrypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrSecretRequired)

	_, err = New("   ")
	assert.ErrorIs(t, err, ErrSecretRequired)

	c, err := New("super-secret")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := New("super-secret")
	require.NoError(t, err)

	cases := []string{
		"a",
		"diagnóstico: hipertensión arterial",
		"multi\nline\nnotes",
		strings.Repeat("x", 10_000),
		"ñandú 漢字 🩺",
	}

	for _, plain := range cases {
		blob, err := c.Encrypt(plain)
		require.NoError(t, err)
		require.NotEmpty(t, blob)

		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEncrypt_BlobHidesPlaintext(t *testing.T) {
	c, err := New("super-secret")
	require.NoError(t, err)

	// El blob es hex, así que textos cortos del alfabeto hex ("a") aparecen
	// como substring por pura casualidad; la fuga se verifica con un texto
	// que el hex no puede contener.
	plain := "diagnóstico: hipertensión arterial"
	blob, err := c.Encrypt(plain)
	require.NoError(t, err)
	assert.NotContains(t, blob, plain)
	assert.NotContains(t, blob, "hipertensión")
}

func TestEncrypt_EmptyStaysEmpty(t *testing.T) {
	c, err := New("super-secret")
	require.NoError(t, err)

	blob, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, blob)

	plain, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestEncrypt_BlobLayout(t *testing.T) {
	c, err := New("super-secret")
	require.NoError(t, err)

	blob, err := c.Encrypt("hello")
	require.NoError(t, err)

	raw, err := hex.DecodeString(blob)
	require.NoError(t, err)

	// salt(64) + nonce(16) + tag(16) + ciphertext(len(plaintext))
	assert.Equal(t, 64+16+16+len("hello"), len(raw))
}

func TestEncrypt_BlobsDiffer(t *testing.T) {
	c, err := New("super-secret")
	require.NoError(t, err)

	a, err := c.Encrypt("same value")
	require.NoError(t, err)
	b, err := c.Encrypt("same value")
	require.NoError(t, err)

	// salt y nonce aleatorios: dos cifrados del mismo valor nunca coinciden
	assert.NotEqual(t, a, b)
}

func TestDecrypt_TamperedBlobFailsClosed(t *testing.T) {
	c, err := New("super-secret")
	require.NoError(t, err)

	blob, err := c.Encrypt("sensitive value")
	require.NoError(t, err)

	raw, err := hex.DecodeString(blob)
	require.NoError(t, err)

	// Alterar cualquier byte (salt incluido no afecta; probamos nonce, tag y ciphertext)
	for _, pos := range []int{64, 64 + 16, len(raw) - 1} {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[pos] ^= 0x01

		_, err := c.Decrypt(hex.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrDecryptFailed, "tamper at byte %d", pos)
	}
}

func TestDecrypt_MalformedBlob(t *testing.T) {
	c, err := New("super-secret")
	require.NoError(t, err)

	for _, blob := range []string{
		"not-hex!!",
		"abcd",                          // demasiado corto
		hex.EncodeToString(make([]byte, 64+16+15)), // un byte menos que el mínimo
	} {
		_, err := c.Decrypt(blob)
		assert.ErrorIs(t, err, ErrMalformedBlob, "blob %q", blob)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	a, err := New("secret-a")
	require.NoError(t, err)
	b, err := New("secret-b")
	require.NoError(t, err)

	blob, err := a.Encrypt("confidential")
	require.NoError(t, err)

	_, err = b.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestHash_Deterministic(t *testing.T) {
	assert.Equal(t, Hash("token"), Hash("token"))
	assert.NotEqual(t, Hash("token"), Hash("token2"))
	assert.Len(t, Hash("token"), 64)
}
