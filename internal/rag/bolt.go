package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// BoltFileName is the database file created inside the index directory.
const BoltFileName = "index.db"

var (
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
	keyDimension = []byte("dimensions")
)

// BoltStore is a VectorStore persisted in a single bbolt file. Every entry is
// mirrored in memory at open time and searched by brute-force cosine
// similarity, which is adequate for the document volumes a single upload
// service sees.
type BoltStore struct {
	// db is the underlying bbolt database.
	db *bbolt.DB

	// path is the database file path, reported by Name and in errors.
	path string

	// mu guards entries and dimension.
	mu sync.RWMutex

	// entries is the in-memory mirror of the chunks bucket, in insertion order.
	entries []boltEntry

	// pos maps a chunk ID to its position in entries.
	pos map[string]int

	// dimension is the vector length fixed by the first insert (0 = unset).
	dimension int
}

// boltEntry is one in-memory index entry.
type boltEntry struct {
	chunk  Chunk
	vector []float32
}

// boltRecord is the JSON value stored under each chunk ID.
type boltRecord struct {
	Content  string            `json:"content"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Vector   []float32         `json:"vector"`
	Seq      uint64            `json:"seq"`
}

// OpenBoltStore opens (or creates) the index stored in dir. The directory is
// created if it does not exist. Only one process may hold the file open;
// a second opener fails after a one second timeout.
func OpenBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bolt: create index dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, BoltFileName)

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketChunks); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create buckets: %w", err)
	}

	s := &BoltStore{db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// load mirrors every persisted entry into memory, ordered by insertion sequence.
func (s *BoltStore) load() error {
	var seqs []uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyDimension); v != nil {
			d, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("parse dimension %q: %w", v, err)
			}
			s.dimension = d
		}
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode entry %s: %w", k, err)
			}
			s.entries = append(s.entries, boltEntry{
				chunk: Chunk{
					ID:       string(k),
					Content:  rec.Content,
					Source:   rec.Source,
					Metadata: rec.Metadata,
				},
				vector: rec.Vector,
			})
			seqs = append(seqs, rec.Seq)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("bolt: load %s: %w", s.path, err)
	}

	idx := make([]int, len(s.entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return seqs[idx[a]] < seqs[idx[b]] })
	ordered := make([]boltEntry, len(s.entries))
	for i, j := range idx {
		ordered[i] = s.entries[j]
	}
	s.entries = ordered
	s.pos = make(map[string]int, len(ordered))
	for i, e := range ordered {
		s.pos[e.chunk.ID] = i
	}
	return nil
}

// Upsert writes the batch in a single bbolt transaction. A dimension mismatch
// or any write failure rolls back the whole batch.
func (s *BoltStore) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("bolt: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("bolt: upsert: %w", err)
	}

	dim := len(vectors[0])
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyDimension); v != nil {
			stored, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("parse dimension %q: %w", v, err)
			}
			dim = stored
		} else if err := meta.Put(keyDimension, []byte(strconv.Itoa(dim))); err != nil {
			return err
		}

		b := tx.Bucket(bucketChunks)
		for i, c := range chunks {
			if len(vectors[i]) != dim {
				return fmt.Errorf("%w: index has %d, chunk %d has %d", ErrDimensionMismatch, dim, i, len(vectors[i]))
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(boltRecord{
				Content:  c.Content,
				Source:   c.Source,
				Metadata: c.Metadata,
				Vector:   vectors[i],
				Seq:      seq,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(c.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt: upsert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dim
	for i, c := range chunks {
		c.Score = 0
		e := boltEntry{chunk: c, vector: vectors[i]}
		if p, ok := s.pos[c.ID]; ok {
			s.entries[p] = e
			continue
		}
		s.pos[c.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// Search scores every entry against queryVector and returns the top-k.
// Ties keep insertion order.
func (s *BoltStore) Search(_ context.Context, queryVector []float32, topK int) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 || topK <= 0 {
		return []Chunk{}, nil
	}
	if s.dimension != 0 && len(queryVector) != s.dimension {
		return nil, fmt.Errorf("bolt: search: %w: index has %d, query has %d", ErrDimensionMismatch, s.dimension, len(queryVector))
	}

	type scored struct {
		pos   int
		score float32
	}
	scores := make([]scored, len(s.entries))
	for i, e := range s.entries {
		scores[i] = scored{pos: i, score: CosineSimilarity(queryVector, e.vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]Chunk, topK)
	for i := range topK {
		c := s.entries[scores[i].pos].chunk
		c.Metadata = maps.Clone(c.Metadata)
		c.Score = scores[i].score
		out[i] = c
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *BoltStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Meta returns the metadata value stored under key, or "" when unset.
func (s *BoltStore) Meta(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get([]byte(key)); v != nil {
			val = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("bolt: meta %s: %w", key, err)
	}
	return val, nil
}

// SetMeta stores value under key in the metadata bucket.
func (s *BoltStore) SetMeta(key, value string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt: set meta %s: %w", key, err)
	}
	return nil
}

// Ping verifies the database file is readable.
func (s *BoltStore) Ping(_ context.Context) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketChunks) == nil {
			return fmt.Errorf("chunks bucket missing")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt: ping: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *BoltStore) Name() string { return "index" }

// Path returns the database file path.
func (s *BoltStore) Path() string { return s.path }

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("bolt: close: %w", err)
	}
	return nil
}
