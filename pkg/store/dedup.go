package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math/big"

	"github.com/xhad/redagent/internal/models"
)

// idSpace bounds derived ids. Two fingerprints can collide modulo this value;
// that is accepted.
var idSpace = big.NewInt(1_000_000_000)

// Fingerprint is the hex md5 of the exact chunk text.
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PointID derives the point id from a fingerprint.
func PointID(fingerprint string) uint64 {
	n, ok := new(big.Int).SetString(fingerprint, 16)
	if !ok {
		return 0
	}
	return n.Mod(n, idSpace).Uint64()
}

// NewChunk fingerprints text and assigns an id. A zero id means derive it.
func NewChunk(text string, id uint64) models.Chunk {
	fp := Fingerprint(text)
	if id == 0 {
		id = PointID(fp)
	}
	return models.Chunk{ID: id, Text: text, Fingerprint: fp}
}

type lister interface {
	ListAll(ctx context.Context) ([]models.Chunk, error)
}

// DedupIndex answers membership questions by listing the whole collection on
// every call, so it stays correct across restarts and multiple writers.
type DedupIndex struct {
	source lister
}

func NewDedupIndex(source lister) *DedupIndex {
	return &DedupIndex{source: source}
}

func (d *DedupIndex) IsDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	chunks, err := d.source.ListAll(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range chunks {
		if c.Fingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}
