// Package repository defines the persistence contract of the scoring core.
package repository

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/apexgp/apex-scoring/internal/domain/model"
	"github.com/apexgp/apex-scoring/pkg/metrics"
)

// Treap-backed ordered key-value map.
//
// Keys are composite strings; in-order traversal yields plain ascending
// byte order, which is exactly the scan contract of the external store.
// Leaderboard index keys embed the rank key, so an ascending scan over the
// index prefix returns entries best-first.

// Key prefixes. Distinct prefixes keep the namespaces from colliding even
// though rank keys share one codec.
const (
	prefixResult     = "result#"  // result#<category>#<season>#<raceID>
	prefixPrediction = "pred#"    // pred#<category>#<season>#<raceID>#<userID>
	prefixScore      = "score#"   // score#<userID>#<season>#<raceID>
	prefixEntry      = "lbent#"   // lbent#<season>#<userID>
	prefixRankIndex  = "lbidx#"   // lbidx#<season>#<rankKey>#<userID>
)

const defaultPageSize = 100

// node is one treap node keyed by a composite string.
type node struct {
	key   string
	value any
	prio  uint64
	left  *node
	right *node
}

func merge(l, r *node) *node {
	switch {
	case l == nil:
		return r
	case r == nil:
		return l
	case l.prio > r.prio:
		l.right = merge(l.right, r)
		return l
	default:
		r.left = merge(l, r.left)
		return r
	}
}

// split partitions t into keys < k and keys >= k.
func split(t *node, k string) (l, r *node) {
	if t == nil {
		return nil, nil
	}
	if t.key < k {
		t.right, r = split(t.right, k)
		return t, r
	}
	l, t.left = split(t.left, k)
	return l, t
}

// MemStore implements Store on an in-memory treap.
type MemStore struct {
	mu       sync.RWMutex
	root     *node
	count    int
	rng      *rand.Rand
	pageSize int
}

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithPageSize sets the internal page size used by range listings,
// emulating the batch limit of the external store.
func WithPageSize(n int) MemOption {
	return func(s *MemStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSeed fixes the treap priority source for reproducible shapes in tests.
func WithSeed(seed int64) MemOption {
	return func(s *MemStore) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // tree balancing only
	}
}

// NewMemStore creates an empty ordered store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		pageSize: defaultPageSize,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // tree balancing only
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// put inserts or replaces key. Caller holds mu.
func (s *MemStore) put(key string, value any) {
	if n := s.lookup(key); n != nil {
		n.value = value
		return
	}
	l, r := split(s.root, key)
	n := &node{key: key, value: value, prio: s.rng.Uint64()}
	s.root = merge(merge(l, n), r)
	s.count++
}

// del removes key if present. Caller holds mu.
func (s *MemStore) del(key string) {
	l, r := split(s.root, key)
	mid, rest := split(r, key+"\x00")
	if mid != nil {
		s.count--
	}
	s.root = merge(l, rest)
}

// lookup returns the node for key or nil. Caller holds mu (read).
func (s *MemStore) lookup(key string) *node {
	cur := s.root
	for cur != nil {
		switch {
		case key < cur.key:
			cur = cur.left
		case key > cur.key:
			cur = cur.right
		default:
			return cur
		}
	}
	return nil
}

// page collects up to limit key/value pairs with key >= start and the given
// prefix, in ascending key order. Caller holds mu (read).
func (s *MemStore) page(prefix, start string, limit int) (keys []string, values []any) {
	// A key that lacks the prefix yet compares greater than it sorts after
	// every prefixed key, so the scan can stop there.
	var walk func(n *node) bool
	walk = func(n *node) bool {
		if n == nil {
			return true
		}
		if n.key >= start {
			if !walk(n.left) {
				return false
			}
			switch {
			case strings.HasPrefix(n.key, prefix):
				keys = append(keys, n.key)
				values = append(values, n.value)
				if len(keys) >= limit {
					return false
				}
			case n.key > prefix:
				return false
			}
		}
		return walk(n.right)
	}
	walk(s.root)
	return keys, values
}

func resultKey(ref model.RaceRef) string {
	return prefixResult + ref.Category + "#" + ref.Season + "#" + ref.RaceID
}

func predictionPrefix(ref model.RaceRef) string {
	return prefixPrediction + ref.Category + "#" + ref.Season + "#" + ref.RaceID + "#"
}

func scorePrefix(userID, season string) string {
	return prefixScore + userID + "#" + season + "#"
}

func entryKey(season, userID string) string {
	return prefixEntry + season + "#" + userID
}

func rankIndexKey(season, rankKey, userID string) string {
	return prefixRankIndex + season + "#" + rankKey + "#" + userID
}

// PutRaceResult publishes (or republishes) the official result.
func (s *MemStore) PutRaceResult(ctx context.Context, ref model.RaceRef, result model.RaceResult) error {
	defer track(time.Now(), metrics.RecordStoreUpdateLatency)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(resultKey(ref), result)
	return ctx.Err()
}

// GetRaceResult returns the published result or ErrNotFound.
func (s *MemStore) GetRaceResult(ctx context.Context, ref model.RaceRef) (model.RaceResult, error) {
	defer track(time.Now(), metrics.RecordStoreQueryLatency)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.lookup(resultKey(ref))
	if n == nil {
		return model.RaceResult{}, ErrNotFound
	}
	return n.value.(model.RaceResult), ctx.Err()
}

// PutPrediction stores one user's prediction for a race.
func (s *MemStore) PutPrediction(ctx context.Context, ref model.RaceRef, pred model.Prediction) error {
	defer track(time.Now(), metrics.RecordStoreUpdateLatency)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(predictionPrefix(ref)+pred.UserID, pred)
	return ctx.Err()
}

// ListPredictions streams every prediction for a race in internal pages,
// restartable from the last delivered key the way the external store's
// cursor loop works.
func (s *MemStore) ListPredictions(ctx context.Context, ref model.RaceRef, fn func(model.Prediction) error) error {
	defer track(time.Now(), metrics.RecordStoreQueryLatency)
	prefix := predictionPrefix(ref)
	start := prefix
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.RLock()
		keys, values := s.page(prefix, start, s.pageSize)
		s.mu.RUnlock()
		for _, v := range values {
			if err := fn(v.(model.Prediction)); err != nil {
				return err
			}
		}
		if len(keys) < s.pageSize {
			return nil
		}
		start = keys[len(keys)-1] + "\x00"
	}
}

// PutPerRaceScore records or overwrites the audit record for one race.
func (s *MemStore) PutPerRaceScore(ctx context.Context, score model.PerRaceScore) error {
	defer track(time.Now(), metrics.RecordStoreUpdateLatency)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(prefixScore+score.UserID+"#"+score.Season+"#"+score.RaceID, score)
	return ctx.Err()
}

// ListPerRaceScores returns all per-race scores for (user, season).
func (s *MemStore) ListPerRaceScores(ctx context.Context, userID, season string) ([]model.PerRaceScore, error) {
	defer track(time.Now(), metrics.RecordStoreQueryLatency)
	prefix := scorePrefix(userID, season)
	var out []model.PerRaceScore
	start := prefix
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.RLock()
		keys, values := s.page(prefix, start, s.pageSize)
		s.mu.RUnlock()
		for _, v := range values {
			out = append(out, v.(model.PerRaceScore))
		}
		if len(keys) < s.pageSize {
			return out, nil
		}
		start = keys[len(keys)-1] + "\x00"
	}
}

// GetEntry returns the leaderboard entry for (user, season) or ErrNotFound.
func (s *MemStore) GetEntry(ctx context.Context, userID, season string) (model.LeaderboardEntry, error) {
	defer track(time.Now(), metrics.RecordStoreQueryLatency)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.lookup(entryKey(season, userID))
	if n == nil {
		return model.LeaderboardEntry{}, ErrNotFound
	}
	return n.value.(model.LeaderboardEntry).Clone(), ctx.Err()
}

// CompareAndPutEntry is the conditional write backing the idempotency
// guard: it succeeds only when the caller saw the latest version.
func (s *MemStore) CompareAndPutEntry(ctx context.Context, entry model.LeaderboardEntry) (model.LeaderboardEntry, error) {
	defer track(time.Now(), metrics.RecordStoreUpdateLatency)
	s.mu.Lock()
	defer s.mu.Unlock()
	var current model.LeaderboardEntry
	if n := s.lookup(entryKey(entry.Season, entry.UserID)); n != nil {
		current = n.value.(model.LeaderboardEntry)
	}
	if current.Version != entry.Version {
		metrics.RecordStoreConflict()
		return model.LeaderboardEntry{}, ErrVersionConflict
	}
	return s.writeEntry(ctx, entry, current)
}

// PutEntry writes unconditionally; the reconciliation repair path uses it.
func (s *MemStore) PutEntry(ctx context.Context, entry model.LeaderboardEntry) (model.LeaderboardEntry, error) {
	defer track(time.Now(), metrics.RecordStoreUpdateLatency)
	s.mu.Lock()
	defer s.mu.Unlock()
	var current model.LeaderboardEntry
	if n := s.lookup(entryKey(entry.Season, entry.UserID)); n != nil {
		current = n.value.(model.LeaderboardEntry)
	}
	entry.Version = current.Version
	return s.writeEntry(ctx, entry, current)
}

// writeEntry persists entry and keeps the rank index in step. Caller holds mu.
func (s *MemStore) writeEntry(ctx context.Context, entry, current model.LeaderboardEntry) (model.LeaderboardEntry, error) {
	stored := entry.Clone()
	stored.Version = entry.Version + 1
	stored.UpdatedAt = time.Now().UTC()
	if current.RankKey != "" && current.RankKey != stored.RankKey {
		s.del(rankIndexKey(current.Season, current.RankKey, current.UserID))
	}
	s.put(entryKey(stored.Season, stored.UserID), stored)
	s.put(rankIndexKey(stored.Season, stored.RankKey, stored.UserID), stored.UserID)
	return stored.Clone(), ctx.Err()
}

// TopEntries serves the season standings by ascending scan over the rank
// index; rank keys invert point order, so ascending keys means points
// descending, ties broken by user id.
func (s *MemStore) TopEntries(ctx context.Context, season string, n int) ([]model.LeaderboardEntry, error) {
	defer track(time.Now(), metrics.RecordStoreQueryLatency)
	if n < 1 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := prefixRankIndex + season + "#"
	_, values := s.page(prefix, prefix, n)
	out := make([]model.LeaderboardEntry, 0, len(values))
	for _, v := range values {
		userID := v.(string)
		if en := s.lookup(entryKey(season, userID)); en != nil {
			out = append(out, en.value.(model.LeaderboardEntry).Clone())
		}
	}
	return out, ctx.Err()
}

// ListSeasonEntries streams every entry for a season, paginated internally.
func (s *MemStore) ListSeasonEntries(ctx context.Context, season string, fn func(model.LeaderboardEntry) error) error {
	defer track(time.Now(), metrics.RecordStoreQueryLatency)
	prefix := prefixEntry + season + "#"
	start := prefix
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.RLock()
		keys, values := s.page(prefix, start, s.pageSize)
		s.mu.RUnlock()
		for _, v := range values {
			if err := fn(v.(model.LeaderboardEntry).Clone()); err != nil {
				return err
			}
		}
		if len(keys) < s.pageSize {
			return nil
		}
		start = keys[len(keys)-1] + "\x00"
	}
}

// Count returns the number of leaderboard entries for a season.
func (s *MemStore) Count(ctx context.Context, season string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := prefixEntry + season + "#"
	total := 0
	start := prefix
	for {
		keys, _ := s.page(prefix, start, s.pageSize)
		total += len(keys)
		if len(keys) < s.pageSize {
			return total
		}
		start = keys[len(keys)-1] + "\x00"
	}
}

func track(start time.Time, record func(float64)) {
	record(float64(time.Since(start).Microseconds()) / 1e3)
}
