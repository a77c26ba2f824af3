// Package store owns the authoritative persisted commission collection. The
// whole collection lives as one JSON array under a single key; every mutation
// is a read-modify-write of that blob, serialized by a mutex so two
// overlapping user actions cannot both read the pre-write state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"commline/internal/domain"
	"commline/internal/kvstore"
)

// Key under which the collection is persisted.
const Key = "commissions"

type Store struct {
	KV   kvstore.Store
	Seed []domain.Commission
	Now  func() time.Time

	mu sync.Mutex
}

func New(kv kvstore.Store, seed []domain.Commission) *Store {
	return &Store{KV: kv, Seed: seed, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Load reads the persisted collection. Missing or corrupt data falls back to
// the seed collection, which is persisted immediately so the next load finds
// a healthy blob. Statuses are normalized and duplicates collapsed on the way
// in, so callers only ever see canonical, deduplicated records.
func (s *Store) Load(ctx context.Context) ([]domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) ([]domain.Commission, error) {
	raw, err := s.KV.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("store: read %s: %v; falling back to seed", Key, err)
		}
		return s.resetToSeed(ctx)
	}
	var list []domain.Commission
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Printf("store: corrupt %s blob: %v; falling back to seed", Key, err)
		return s.resetToSeed(ctx)
	}
	return s.sanitize(list), nil
}

func (s *Store) resetToSeed(ctx context.Context) ([]domain.Commission, error) {
	list := s.sanitize(s.Seed)
	if err := s.saveLocked(ctx, list); err != nil {
		// Memory still holds the seed collection; disk will heal on the next
		// successful write.
		log.Printf("store: persist seed: %v", err)
	}
	return list, nil
}

func (s *Store) sanitize(list []domain.Commission) []domain.Commission {
	out := make([]domain.Commission, 0, len(list))
	for _, c := range list {
		st, ok := domain.NormalizeStatus(string(c.Status))
		if ok || c.Status == "" {
			c.Status = st
		}
		out = append(out, c)
	}
	return domain.Dedupe(out)
}

// Save overwrites the persisted collection with the given list.
func (s *Store) Save(ctx context.Context, list []domain.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, list)
}

func (s *Store) saveLocked(ctx context.Context, list []domain.Commission) error {
	if list == nil {
		list = []domain.Commission{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, Key, string(data))
}

// Merge resolves the delta's identity and shallow-merges it over the matching
// record, or prepends a new record when nothing matches. Status and lifecycle
// metadata arrive in the same delta and land in one write, so a terminal
// status is never persisted without its timestamp. Returns the updated
// collection.
func (s *Store) Merge(ctx context.Context, delta domain.Delta) ([]domain.Commission, error) {
	return s.MergeAt(ctx, domain.ResolveIdentity(delta.Skeleton()), delta)
}

// MergeAt merges the delta over the record matching the given identity.
// Callers that already hold a record pass its resolved identity so a delta
// that renames identity-bearing fields still lands on the right record.
func (s *Store) MergeAt(ctx context.Context, identity string, delta domain.Delta) ([]domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	merged := false
	for i, c := range list {
		if domain.MatchesIdentity(c, identity) {
			next := delta.Apply(c)
			// Status is monotonic: a terminal record never re-enters the
			// lifecycle, whatever a late delta claims.
			if c.Status.Terminal() && !next.Status.Terminal() {
				next.Status = c.Status
			}
			list[i] = next
			merged = true
			break
		}
	}
	if !merged {
		fresh := delta.Skeleton()
		if fresh.CreatedAt == "" {
			fresh.CreatedAt = s.now().UTC().Format(time.RFC3339)
		}
		list = append([]domain.Commission{fresh}, list...)
	}
	list = domain.Dedupe(list)
	if err := s.saveLocked(ctx, list); err != nil {
		return list, err
	}
	return list, nil
}

// RemoveByIdentity drops every record matching the identity in any of its
// forms: literal id, title-artist, and title-artist-date. Producers are
// inconsistent about which form they populate, and a removal must not leave
// behind a record that is logically the same commission.
func (s *Store) RemoveByIdentity(ctx context.Context, identity string) ([]domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	kept := list[:0]
	for _, c := range list {
		if domain.MatchesIdentity(c, identity) {
			continue
		}
		kept = append(kept, c)
	}
	if err := s.saveLocked(ctx, kept); err != nil {
		return kept, err
	}
	return kept, nil
}

// Find returns the record matching the identity in any form.
func (s *Store) Find(ctx context.Context, identity string) (domain.Commission, bool, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return domain.Commission{}, false, err
	}
	for _, c := range list {
		if domain.MatchesIdentity(c, identity) {
			return c, true, nil
		}
	}
	return domain.Commission{}, false, nil
}
