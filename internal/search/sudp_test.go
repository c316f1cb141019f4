package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSUDPRoundTrip(t *testing.T) {
	ks := NewKeyStore(time.Minute)
	key := ks.Current()

	plaintext := []byte("URES AAAA FNsome/file.bin SI12345")
	ciphertext := EncryptAESCBC(key.Key, plaintext)

	decrypted, ok := ks.TryDecrypt(ciphertext)
	require.True(t, ok)
	assert.Equal(t, plaintext, decrypted)
}

func TestSUDPWrongKeyFails(t *testing.T) {
	ks1 := NewKeyStore(time.Minute)
	ks2 := NewKeyStore(time.Minute)

	ciphertext := EncryptAESCBC(ks1.Current().Key, []byte("hello world, padded"))
	_, ok := ks2.TryDecrypt(ciphertext)
	assert.False(t, ok)
}

func TestSUDPKeyRotationKeepsRecentKeyValid(t *testing.T) {
	ks := NewKeyStore(time.Minute)
	oldKey := ks.Current()
	ciphertext := EncryptAESCBC(oldKey.Key, []byte("still decryptable"))

	ks.Rotate(time.Now().Add(30 * time.Second))

	decrypted, ok := ks.TryDecrypt(ciphertext)
	require.True(t, ok)
	assert.Equal(t, []byte("still decryptable"), decrypted)
}

func TestNewTokenUnique(t *testing.T) {
	a := NewToken()
	b := NewToken()
	assert.NotEqual(t, "", a)
	assert.NotEqual(t, "", b)
	assert.NotEqual(t, a, b)
}
