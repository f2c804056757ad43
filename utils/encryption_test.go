package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapflow/config"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	cipher, err := Encrypt("per-instance-token")
	require.NoError(t, err)
	assert.NotEqual(t, "per-instance-token", cipher)

	plain, err := Decrypt(cipher)
	require.NoError(t, err)
	assert.Equal(t, "per-instance-token", plain)

	// Fresh IV every call
	again, err := Encrypt("per-instance-token")
	require.NoError(t, err)
	assert.NotEqual(t, cipher, again)
}

func TestEncryptEmptyPassthrough(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	cipher, err := Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, cipher)

	plain, err := Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	_, err := Decrypt("notbase64!!!")
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=")
	assert.Error(t, err, "ciphertext shorter than one block")
}
