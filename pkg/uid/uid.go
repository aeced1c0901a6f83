// Package uid generates non-guessable 64-bit document ids by encrypting
// a strictly monotonic counter under a stream cipher keyed at process
// start. The same ciphertext is never produced twice in a process
// lifetime, since the plaintext (counter plus wall-clock second) is
// strictly increasing.
package uid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/chacha20"
)

// Generator produces pairwise-distinct, non-sequential 64-bit ids.
type Generator struct {
	mu      sync.Mutex
	cipher  *chacha20.Cipher
	counter atomic.Uint64
}

// New draws a fresh 256-bit key and 96-bit nonce from a CSPRNG and
// returns a ready-to-use Generator.
//
// golang.org/x/crypto's ChaCha20 implementation is fixed at the
// standard 20 rounds; no audited Go package in the ecosystem exposes a
// reduced-round variant, so we run the standard cipher rather than
// hand-roll one.
func New() (*Generator, error) {
	key := make([]byte, chacha20.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("uid: reading key material: %w", err)
	}
	nonce := make([]byte, chacha20.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("uid: reading nonce material: %w", err)
	}
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("uid: initializing cipher: %w", err)
	}
	return &Generator{cipher: c}, nil
}

// NextID atomically post-increments the internal counter, folds in the
// current wall-clock second, encrypts the 8-byte little-endian result,
// and reinterprets the ciphertext as a signed 64-bit integer.
//
// The cipher's keystream position advances with every call, so the
// encryption itself (not just the plaintext) is monotonic; the mutex
// scope covers exactly one XORKeyStream call on 8 bytes and sits off
// the hot receive path.
func (g *Generator) NextID() int64 {
	n := g.counter.Add(1)
	plain := n + uint64(time.Now().Unix())

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], plain)

	g.mu.Lock()
	g.cipher.XORKeyStream(buf[:], buf[:])
	g.mu.Unlock()

	return int64(binary.LittleEndian.Uint64(buf[:]))
}
