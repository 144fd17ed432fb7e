package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poc-router/backendclient"
)

func testBatch(publicKey string, nonces ...int64) Batch {
	arts := make([]backendclient.Artifact, len(nonces))
	for i, n := range nonces {
		arts[i] = backendclient.Artifact{Nonce: n, VectorB64: "AAAA"}
	}
	return Batch{
		BlockHash:   "hash",
		BlockHeight: 100,
		PublicKey:   publicKey,
		Artifacts:   arts,
	}
}

func TestValidateBatchRejectsDuplicateNonce(t *testing.T) {
	err := ValidateBatch(testBatch("pk", 1, 2, 1))
	assert.ErrorIs(t, err, ErrDuplicateNonce)
}

func TestValidateBatchRejectsEmpty(t *testing.T) {
	assert.Error(t, ValidateBatch(testBatch("pk")))
}

func TestValidateBatchOk(t *testing.T) {
	assert.NoError(t, ValidateBatch(testBatch("pk", 1, 2, 3)))
}

func TestStoreAddDuplicate(t *testing.T) {
	store := NewStore()
	a := backendclient.Artifact{Nonce: 1, VectorB64: "first"}
	require.NoError(t, store.Add("pk", a))

	err := store.Add("pk", backendclient.Artifact{Nonce: 1, VectorB64: "second"})
	assert.ErrorIs(t, err, ErrDuplicateNonce)

	// Original artifact untouched
	got, err := store.GetByNonce(1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.VectorB64)
}

func TestStoreAddBatchSkipsCrossBatchDuplicates(t *testing.T) {
	store := NewStore()
	added, skipped := store.AddBatch(testBatch("pk1", 1, 2, 3))
	assert.Equal(t, 3, added)
	assert.Equal(t, 0, skipped)

	added, skipped = store.AddBatch(testBatch("pk2", 3, 4))
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 4, store.Count())
}

func TestStoreSenderCounts(t *testing.T) {
	store := NewStore()
	store.AddBatch(testBatch("pk1", 1, 2))
	store.AddBatch(testBatch("pk2", 3))

	counts := store.SenderCounts()
	assert.Equal(t, 2, counts["pk1"])
	assert.Equal(t, 1, counts["pk2"])
}

func TestStoreGetByNonceMissing(t *testing.T) {
	store := NewStore()
	_, err := store.GetByNonce(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagedStorePrunesOldStages(t *testing.T) {
	m := NewManagedStore(2)
	m.GetOrCreateStore(100)
	m.GetOrCreateStore(200)
	m.GetOrCreateStore(300)

	assert.Nil(t, m.GetStore(100))
	assert.NotNil(t, m.GetStore(200))
	assert.NotNil(t, m.GetStore(300))
	assert.Equal(t, []int64{200, 300}, m.StageHeights())
}

func TestManagedStoreReturnsSameStore(t *testing.T) {
	m := NewManagedStore(10)
	first := m.GetOrCreateStore(100)
	first.Add("pk", backendclient.Artifact{Nonce: 1, VectorB64: "x"})

	second := m.GetOrCreateStore(100)
	assert.Equal(t, 1, second.Count())
	assert.Same(t, first, second)
}
