package vector

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"

	"github.com/Zereker/talentmatch/pkg/log"
)

// ErrInvalidVector is returned for an empty query vector or one whose
// length differs from the store's configured dimension.
var ErrInvalidVector = errors.New("invalid vector")

type slot struct {
	rec  Record
	norm float64
}

// MemoryStore is an in-process brute-force Store.
// Records keep the slot they were first inserted at, so ties in a query
// resolve in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	dims   int
	logger *slog.Logger

	slots  []slot
	index  map[string]uint32
	byType map[string]*roaring.Bitmap
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithDimensions makes Upsert reject vectors of any other length.
func WithDimensions(dims int) MemoryOption {
	return func(s *MemoryStore) {
		s.dims = dims
	}
}

// WithLogger sets the logger used for skipped records.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		logger: log.Logger("vector.memory"),
		index:  make(map[string]uint32),
		byType: make(map[string]*roaring.Bitmap),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert inserts or replaces records. Malformed records are logged and skipped.
func (s *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if reason := malformed(r, s.dims); reason != "" {
			s.logger.Warn("skipping record", "id", r.ID, "reason", reason)
			continue
		}

		stored := slot{
			rec: Record{
				ID:       r.ID,
				Vector:   copyVector(r.Vector),
				Metadata: cloneMetadata(r.Metadata),
			},
			norm: norm(r.Vector),
		}
		newType := stored.rec.Type()

		if pos, ok := s.index[r.ID]; ok {
			oldType := s.slots[pos].rec.Type()
			if oldType != newType {
				s.untag(oldType, pos)
				s.tag(newType, pos)
			}
			s.slots[pos] = stored
			continue
		}

		pos := uint32(len(s.slots))
		s.slots = append(s.slots, stored)
		s.index[r.ID] = pos
		s.tag(newType, pos)
	}

	return nil
}

func (s *MemoryStore) tag(typ string, pos uint32) {
	if typ == "" {
		return
	}
	bm, ok := s.byType[typ]
	if !ok {
		bm = roaring.New()
		s.byType[typ] = bm
	}
	bm.Add(pos)
}

func (s *MemoryStore) untag(typ string, pos uint32) {
	if bm, ok := s.byType[typ]; ok {
		bm.Remove(pos)
		if bm.IsEmpty() {
			delete(s.byType, typ)
		}
	}
}

// Query scores every record matching the filter by cosine similarity.
func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.TopK <= 0 {
		return []Match{}, nil
	}
	if len(q.Vector) == 0 {
		return nil, errors.WithMessage(ErrInvalidVector, "empty query vector")
	}
	if s.dims > 0 && len(q.Vector) != s.dims {
		return nil, errors.WithMessagef(ErrInvalidVector, "query has %d dimensions, want %d", len(q.Vector), s.dims)
	}

	qnorm := norm(q.Vector)

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		pos   uint32
		score float64
	}
	var hits []scored

	score := func(pos uint32) {
		sl := &s.slots[pos]
		if len(sl.rec.Vector) != len(q.Vector) {
			return
		}
		hits = append(hits, scored{pos: pos, score: cosine(q.Vector, sl.rec.Vector, qnorm, sl.norm)})
	}

	if typ := q.filterType(); typ != "" {
		bm, ok := s.byType[typ]
		if !ok {
			return []Match{}, nil
		}
		it := bm.Iterator()
		for it.HasNext() {
			score(it.Next())
		}
	} else {
		for pos := range s.slots {
			score(uint32(pos))
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}

	matches := make([]Match, len(hits))
	for i, h := range hits {
		rec := s.slots[h.pos].rec
		matches[i] = Match{
			ID:       rec.ID,
			Score:    h.score,
			Metadata: cloneMetadata(rec.Metadata),
		}
	}
	return matches, nil
}

// Fetch returns copies of the stored records for the ids that exist.
func (s *MemoryStore) Fetch(ctx context.Context, ids []string) (map[string]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Record, len(ids))
	for _, id := range ids {
		pos, ok := s.index[id]
		if !ok {
			continue
		}
		rec := s.slots[pos].rec
		out[id] = Record{
			ID:       rec.ID,
			Vector:   copyVector(rec.Vector),
			Metadata: cloneMetadata(rec.Metadata),
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Count returns the number of records of the given type.
func (s *MemoryStore) Count(typ string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bm, ok := s.byType[typ]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
