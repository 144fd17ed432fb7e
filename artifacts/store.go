package artifacts

import (
	"errors"
	"sync"

	"poc-router/backendclient"
)

var (
	ErrDuplicateNonce = errors.New("duplicate nonce")
	ErrNotFound       = errors.New("artifact not found")
)

// Batch is one upload of generated artifacts from a backend node.
type Batch struct {
	BlockHash   string                   `json:"block_hash"`
	BlockHeight int64                    `json:"block_height"`
	PublicKey   string                   `json:"public_key"`
	NodeId      int                      `json:"node_id"`
	KDim        int                      `json:"k_dim,omitempty"`
	Artifacts   []backendclient.Artifact `json:"artifacts"`
}

// ValidateBatch rejects batches that repeat a nonce within themselves.
// Cross-batch duplicates are handled at insertion, not here.
func ValidateBatch(b Batch) error {
	if len(b.Artifacts) == 0 {
		return errors.New("batch has no artifacts")
	}
	seen := make(map[int64]struct{}, len(b.Artifacts))
	for _, a := range b.Artifacts {
		if _, dup := seen[a.Nonce]; dup {
			return ErrDuplicateNonce
		}
		seen[a.Nonce] = struct{}{}
	}
	return nil
}

// Store holds the artifacts of one PoC stage, keyed by nonce.
type Store struct {
	mu        sync.RWMutex
	byNonce   map[int64]backendclient.Artifact
	perSender map[string]int
}

func NewStore() *Store {
	return &Store{
		byNonce:   make(map[int64]backendclient.Artifact),
		perSender: make(map[string]int),
	}
}

// Add inserts one artifact. A nonce already present returns
// ErrDuplicateNonce and leaves the stored artifact untouched.
func (s *Store) Add(publicKey string, a backendclient.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNonce[a.Nonce]; exists {
		return ErrDuplicateNonce
	}
	s.byNonce[a.Nonce] = a
	s.perSender[publicKey]++
	return nil
}

// AddBatch inserts a validated batch. Duplicate nonces against earlier
// batches are skipped and counted rather than failing the upload.
func (s *Store) AddBatch(b Batch) (added, skipped int) {
	for _, a := range b.Artifacts {
		if err := s.Add(b.PublicKey, a); err != nil {
			skipped++
			continue
		}
		added++
	}
	return added, skipped
}

func (s *Store) GetByNonce(nonce int64) (backendclient.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byNonce[nonce]
	if !ok {
		return backendclient.Artifact{}, ErrNotFound
	}
	return a, nil
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byNonce)
}

// SenderCounts returns how many artifacts each public key contributed.
func (s *Store) SenderCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.perSender))
	for k, v := range s.perSender {
		counts[k] = v
	}
	return counts
}
