package rng

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"
)

// System provides cryptographically secure random numbers for poker operations
type System struct {
	cipher  cipher.Block
	nonce   []byte
	counter uint64
	mu      sync.Mutex
}

// NewSystem creates a new RNG system with hardware seed
func NewSystem() (*System, error) {
	// Obtain seed from hardware RNG
	seed, err := getHardwareSeed(32)
	if err != nil {
		return nil, fmt.Errorf("failed to get hardware seed: %w", err)
	}

	// Create AES-CTR cipher
	block, err := aes.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	// Initialize nonce with random value
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &System{
		cipher:  block,
		nonce:   nonce,
		counter: 0,
	}, nil
}

// getHardwareSeed obtains entropy from system CSPRNG
func getHardwareSeed(n int) ([]byte, error) {
	seed := make([]byte, n)
	// Use crypto/rand which reads from /dev/urandom on Linux
	// This pools entropy from hardware sources (RDSEED, RDRAND, etc.)
	nRead, err := io.ReadFull(rand.Reader, seed)
	if err != nil {
		return nil, err
	}
	if nRead != n {
		return nil, fmt.Errorf("short read from CSPRNG: %d/%d", nRead, n)
	}
	return seed, nil
}

// RandomUint64 returns a cryptographically secure random uint64
func (s *System) RandomUint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Create counter-based output
	counterBytes := make([]byte, 16)
	binary.BigEndian.PutUint64(counterBytes[:8], s.counter)
	binary.BigEndian.PutUint64(counterBytes[8:], uint64(time.Now().UnixNano()))

	// Encrypt with AES-CTR
	output := make([]byte, 16)
	s.cipher.Encrypt(output, counterBytes)

	s.counter++

	// Convert to uint64
	return binary.BigEndian.Uint64(output[:8])
}

// RandomInt returns a random int in range [0, max). Satisfies
// poker.Shuffler so *System can drive Deck.Shuffle directly.
func (s *System) RandomInt(max int) int {
	if max <= 0 {
		return 0
	}
	return int(s.RandomUint64() % uint64(max))
}
