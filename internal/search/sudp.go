package search

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// SUDPKey is one rotating AES-128 key used to encrypt UDP search results
// sent to us, per spec.md §4.7.2. A new key is issued only when Rotate is
// called, and only NewKeyStore calls it; no timer rotates keys on
// SUDPKeyTTL. No outgoing INF or search in this repository carries the key
// in a KY field.
type SUDPKey struct {
	Key       [16]byte
	IssuedAt  time.Time
}

// KeyStore manages the sliding window of currently-valid SUDP keys: a
// result encrypted under a key issued up to one TTL ago must still decrypt,
// so results in flight when a rotation happens aren't silently dropped.
//
// Grounded on ADC's SUDP extension semantics (no single pack example ships
// a full SUDP implementation, so the window/rotation shape follows the
// general key-rotation pattern used by internal/ratelimit's sliding window,
// applied here to key validity instead of event counts).
type KeyStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	keys []SUDPKey
}

func NewKeyStore(ttl time.Duration) *KeyStore {
	ks := &KeyStore{ttl: ttl}
	ks.Rotate(time.Now())
	return ks
}

// Rotate issues a fresh key and drops any key older than 2*ttl (one full
// extra window of grace beyond the current key's own lifetime).
func (ks *KeyStore) Rotate(now time.Time) SUDPKey {
	var k SUDPKey
	if _, err := rand.Read(k.Key[:]); err != nil {
		// crypto/rand failing is unrecoverable; a zero key would silently
		// produce decryptable-by-anyone results, so panic rather than
		// degrade security silently.
		panic(fmt.Sprintf("search: sudp key generation failed: %v", err))
	}
	k.IssuedAt = now

	ks.mu.Lock()
	defer ks.mu.Unlock()
	cutoff := now.Add(-2 * ks.ttl)
	kept := ks.keys[:0]
	for _, old := range ks.keys {
		if old.IssuedAt.After(cutoff) {
			kept = append(kept, old)
		}
	}
	ks.keys = append(kept, k)
	return k
}

// Current returns the newest key.
func (ks *KeyStore) Current() SUDPKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.keys[len(ks.keys)-1]
}

// TryDecrypt attempts every currently-valid key in newest-first order,
// since most packets were encrypted under the current key.
func (ks *KeyStore) TryDecrypt(ciphertext []byte) ([]byte, bool) {
	ks.mu.RLock()
	keys := make([]SUDPKey, len(ks.keys))
	copy(keys, ks.keys)
	ks.mu.RUnlock()

	for i := len(keys) - 1; i >= 0; i-- {
		if pt, ok := decryptAESCBC(keys[i].Key, ciphertext); ok {
			return pt, true
		}
	}
	return nil, false
}

func decryptAESCBC(key [16]byte, ciphertext []byte) ([]byte, bool) {
	// SUDP packets carry a random 16-byte IV prepended to the ciphertext
	// (spec.md §6.5); the remainder must still be a whole number of blocks.
	if len(ciphertext) < 2*aes.BlockSize || (len(ciphertext)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, false
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, false
	}
	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	mode := cipher.NewCBCDecrypter(block, iv)
	pt := make([]byte, len(body))
	mode.CryptBlocks(pt, body)

	pt, ok := stripPKCS7(pt)
	if !ok {
		return nil, false
	}
	return pt, true
}

func stripPKCS7(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	pad := int(b[len(b)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(b) {
		return nil, false
	}
	for _, p := range b[len(b)-pad:] {
		if int(p) != pad {
			return nil, false
		}
	}
	return b[:len(b)-pad], true
}

// EncryptAESCBC is the encrypting counterpart of TryDecrypt; in this
// repository only the tests call it. It
// prepends a fresh random IV to the returned ciphertext, per spec.md §6.5.
func EncryptAESCBC(key [16]byte, plaintext []byte) []byte {
	padded := applyPKCS7(plaintext, aes.BlockSize)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		panic(fmt.Sprintf("search: sudp iv generation failed: %v", err))
	}
	mode := cipher.NewCBCEncrypter(block, iv)
	out := make([]byte, len(iv)+len(padded))
	copy(out, iv)
	mode.CryptBlocks(out[len(iv):], padded)
	return out
}

func applyPKCS7(b []byte, blockSize int) []byte {
	pad := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+pad)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}
