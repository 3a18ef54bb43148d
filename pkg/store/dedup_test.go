package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/redagent/internal/models"
)

type staticLister struct {
	chunks []models.Chunk
	err    error
}

func (s staticLister) ListAll(context.Context) ([]models.Chunk, error) {
	return s.chunks, s.err
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Fingerprint(""))
	assert.Equal(t, Fingerprint("Buy low."), Fingerprint("Buy low."))
	assert.NotEqual(t, Fingerprint("Buy low."), Fingerprint(" Buy low."))
	assert.Len(t, Fingerprint("anything"), 32)
}

func TestPointID(t *testing.T) {
	fp := Fingerprint("Buy low.")
	id := PointID(fp)
	assert.Equal(t, id, PointID(fp))
	assert.Less(t, id, uint64(1_000_000_000))

	// 0x3b9aca00 == 1e9
	assert.Equal(t, uint64(0), PointID("3b9aca00"))
	assert.Equal(t, uint64(1), PointID("3b9aca01"))
	assert.Equal(t, uint64(0), PointID("not-hex"))
}

func TestNewChunk(t *testing.T) {
	derived := NewChunk("Sell high.", 0)
	assert.Equal(t, PointID(derived.Fingerprint), derived.ID)
	assert.Equal(t, Fingerprint("Sell high."), derived.Fingerprint)

	explicit := NewChunk("Sell high.", 42)
	assert.Equal(t, uint64(42), explicit.ID)
	assert.Equal(t, derived.Fingerprint, explicit.Fingerprint)
}

func TestDedupIndex(t *testing.T) {
	idx := NewDedupIndex(staticLister{chunks: []models.Chunk{
		NewChunk("Buy low.", 0),
		NewChunk("Sell high.", 0),
	}})

	dup, err := idx.IsDuplicate(context.Background(), Fingerprint("Sell high."))
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = idx.IsDuplicate(context.Background(), Fingerprint("Hold."))
	require.NoError(t, err)
	assert.False(t, dup)

	failing := NewDedupIndex(staticLister{err: errors.New("scroll failed")})
	_, err = failing.IsDuplicate(context.Background(), "x")
	assert.Error(t, err)
}
