// Package social owns the per-viewer moderation and social state: follow,
// like, block, not-interested and report. Each set is an independent blob in
// the key-value store so toggling one never rewrites the others. All of it is
// strictly local; there is no server-authoritative copy.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"commline/internal/kvstore"
)

const (
	KeyFollowing     = "following"
	KeyLikes         = "likes"
	KeyLikeCounts    = "like_counts"
	KeyBlocked       = "blocked"
	KeyNotInterested = "not_interested"
	KeyReported      = "reported"
)

type Store struct {
	KV kvstore.Store

	// SeedLikeCounts provides mock counts for records the viewer has never
	// toggled; user toggles merge over them.
	SeedLikeCounts map[string]int

	mu sync.Mutex
}

func New(kv kvstore.Store) *Store {
	return &Store{KV: kv}
}

// boolMap and idSet read failures degrade to empty defaults: a missing or
// corrupt blob means "nothing followed/liked/blocked yet", never a hard error.

func (s *Store) boolMap(ctx context.Context, key string) map[string]bool {
	m := map[string]bool{}
	raw, err := s.KV.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("social: read %s: %v", key, err)
		}
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		log.Printf("social: corrupt %s blob: %v", key, err)
		return map[string]bool{}
	}
	return m
}

func (s *Store) intMap(ctx context.Context, key string) map[string]int {
	m := map[string]int{}
	raw, err := s.KV.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("social: read %s: %v", key, err)
		}
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		log.Printf("social: corrupt %s blob: %v", key, err)
		return map[string]int{}
	}
	return m
}

func (s *Store) idSet(ctx context.Context, key string) []string {
	var ids []string
	raw, err := s.KV.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("social: read %s: %v", key, err)
		}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Printf("social: corrupt %s blob: %v", key, err)
		return nil
	}
	return ids
}

func (s *Store) write(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, key, string(data))
}

// SetFollowing records whether the viewer follows the named artist.
func (s *Store) SetFollowing(ctx context.Context, artist string, following bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.boolMap(ctx, KeyFollowing)
	if following {
		m[artist] = true
	} else {
		delete(m, artist)
	}
	return s.write(ctx, KeyFollowing, m)
}

func (s *Store) IsFollowing(ctx context.Context, artist string) bool {
	return s.boolMap(ctx, KeyFollowing)[artist]
}

func (s *Store) Following(ctx context.Context) map[string]bool {
	return s.boolMap(ctx, KeyFollowing)
}

// ToggleLike flips the viewer's like for the identity and adjusts the count by
// one, floored at zero. The count is derived from the previous boolean, not
// re-fetched from anywhere, and both blobs are written under one mutex hold so
// a double-tap cannot read the pre-toggle state twice. The likes blob is
// written first; if the counts write then fails, the one-action window leaves
// the count stale by one, which is reported to the caller and corrected by the
// next successful toggle.
func (s *Store) ToggleLike(ctx context.Context, identity string) (liked bool, count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	likes := s.boolMap(ctx, KeyLikes)
	counts := s.intMap(ctx, KeyLikeCounts)
	count = s.countFor(counts, identity)
	prev := count

	liked = !likes[identity]
	if liked {
		likes[identity] = true
		count++
	} else {
		delete(likes, identity)
		count--
	}
	if count < 0 {
		count = 0
	}
	counts[identity] = count

	if err := s.write(ctx, KeyLikes, likes); err != nil {
		return !liked, prev, err
	}
	if err := s.write(ctx, KeyLikeCounts, counts); err != nil {
		return liked, count, err
	}
	return liked, count, nil
}

func (s *Store) countFor(counts map[string]int, identity string) int {
	if c, ok := counts[identity]; ok {
		return c
	}
	return s.SeedLikeCounts[identity]
}

func (s *Store) IsLiked(ctx context.Context, identity string) bool {
	return s.boolMap(ctx, KeyLikes)[identity]
}

func (s *Store) LikeCount(ctx context.Context, identity string) int {
	return s.countFor(s.intMap(ctx, KeyLikeCounts), identity)
}

func (s *Store) addToSet(ctx context.Context, key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.idSet(ctx, key)
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return s.write(ctx, key, ids)
}

func (s *Store) setContains(ctx context.Context, key, id string) bool {
	for _, existing := range s.idSet(ctx, key) {
		if existing == id {
			return true
		}
	}
	return false
}

func (s *Store) Block(ctx context.Context, identity string) error {
	return s.addToSet(ctx, KeyBlocked, identity)
}

func (s *Store) IsBlocked(ctx context.Context, identity string) bool {
	return s.setContains(ctx, KeyBlocked, identity)
}

func (s *Store) Blocked(ctx context.Context) []string {
	return s.idSet(ctx, KeyBlocked)
}

func (s *Store) MarkNotInterested(ctx context.Context, identity string) error {
	return s.addToSet(ctx, KeyNotInterested, identity)
}

func (s *Store) IsNotInterested(ctx context.Context, identity string) bool {
	return s.setContains(ctx, KeyNotInterested, identity)
}

func (s *Store) NotInterested(ctx context.Context) []string {
	return s.idSet(ctx, KeyNotInterested)
}

func (s *Store) Report(ctx context.Context, identity string) error {
	return s.addToSet(ctx, KeyReported, identity)
}

func (s *Store) IsReported(ctx context.Context, identity string) bool {
	return s.setContains(ctx, KeyReported, identity)
}

func (s *Store) Reported(ctx context.Context) []string {
	return s.idSet(ctx, KeyReported)
}
