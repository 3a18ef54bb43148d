package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
)

var bucketCollections = []byte("collections")

type BoltConfig struct {
	Path string
}

// BoltBackend keeps collections in a local bbolt file. Search is brute force,
// which is fine for a single document's worth of chunks.
type BoltBackend struct {
	db *bbolt.DB
}

type boltPoint struct {
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint"`
	Vector      []float32 `json:"v"`
}

var _ types.Backend = (*BoltBackend)(nil)

func NewBoltBackend(config BoltConfig) (*BoltBackend, error) {
	if config.Path == "" {
		config.Path = "data/redagent.db"
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := bbolt.Open(config.Path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", config.Path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collections bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func pointsBucket(collection string) []byte {
	return []byte("points/" + collection)
}

func pointKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

func (b *BoltBackend) ListCollections(_ context.Context) ([]types.CollectionInfo, error) {
	var out []types.CollectionInfo
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(_, v []byte) error {
			var info types.CollectionInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("corrupt collection record: %w", err)
			}
			out = append(out, info)
			return nil
		})
	})
	return out, err
}

func (b *BoltBackend) CreateCollection(_ context.Context, info types.CollectionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(pointsBucket(info.Name)); err != nil {
			return err
		}
		return tx.Bucket(bucketCollections).Put([]byte(info.Name), data)
	})
}

func (b *BoltBackend) Upsert(_ context.Context, collection string, points []models.Point) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(pointsBucket(collection))
		if bucket == nil {
			return fmt.Errorf("collection %q not found", collection)
		}
		for _, p := range points {
			data, err := json.Marshal(boltPoint{Text: p.Text, Fingerprint: p.Fingerprint, Vector: p.Vector})
			if err != nil {
				return err
			}
			if err := bucket.Put(pointKey(p.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltBackend) Search(_ context.Context, collection string, vector []float32, limit int) ([]models.SearchResult, error) {
	metric, err := b.metric(collection)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	err = b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(pointsBucket(collection)).ForEach(func(k, v []byte) error {
			var p boltPoint
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("corrupt point: %w", err)
			}
			if len(p.Vector) != len(vector) {
				return fmt.Errorf("%w: stored %d, query %d", types.ErrDimensionMismatch, len(p.Vector), len(vector))
			}
			results = append(results, models.SearchResult{
				ID:    int64(binary.BigEndian.Uint64(k)),
				Score: similarity(metric, vector, p.Vector),
				Text:  p.Text,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (b *BoltBackend) Scroll(_ context.Context, collection string) ([]models.Chunk, error) {
	var chunks []models.Chunk
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(pointsBucket(collection))
		if bucket == nil {
			return fmt.Errorf("collection %q not found", collection)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var p boltPoint
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("corrupt point: %w", err)
			}
			chunks = append(chunks, models.Chunk{
				ID:          binary.BigEndian.Uint64(k),
				Text:        p.Text,
				Fingerprint: p.Fingerprint,
			})
			return nil
		})
	})
	return chunks, err
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func (b *BoltBackend) metric(collection string) (types.Metric, error) {
	var info types.CollectionInfo
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCollections).Get([]byte(collection))
		if data == nil {
			return fmt.Errorf("collection %q not found", collection)
		}
		return json.Unmarshal(data, &info)
	})
	return info.Metric, err
}

func similarity(metric types.Metric, a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if metric == types.MetricDot {
		return dot
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
