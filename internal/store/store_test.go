package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"commline/internal/domain"
	"commline/internal/kvstore"
)

var testSeed = []domain.Commission{
	{Title: "Gold Earrings", Artist: "Kreideprinz", Status: domain.StatusPending, Date: "Jan 12, 2026"},
	{Title: "Band Poster", Artist: "Ink&Iron", Status: domain.StatusOngoing, Date: "Feb 2, 2026"},
}

func newTestStore() (*Store, *kvstore.Memory) {
	kv := kvstore.NewMemory()
	s := New(kv, testSeed)
	s.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return s, kv
}

func TestLoadFallsBackToSeedAndPersists(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()
	list, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected seed collection, got %d records", len(list))
	}
	// The fallback must be written back immediately.
	raw, err := kv.Get(ctx, Key)
	if err != nil {
		t.Fatalf("expected persisted seed: %v", err)
	}
	var persisted []domain.Commission
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("persisted blob invalid: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("persisted %d records", len(persisted))
	}
}

func TestLoadRecoversFromCorruptBlob(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()
	if err := kv.Set(ctx, Key, "{not json"); err != nil {
		t.Fatal(err)
	}
	list, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected seed fallback, got %d", len(list))
	}
	raw, _ := kv.Get(ctx, Key)
	var healed []domain.Commission
	if err := json.Unmarshal([]byte(raw), &healed); err != nil {
		t.Fatalf("blob not healed: %v", err)
	}
}

func TestLoadNormalizesStatusSpellings(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()
	raw, _ := json.Marshal([]map[string]string{
		{"id": "1", "title": "A", "artist": "B", "status": "On Going"},
		{"id": "2", "title": "C", "artist": "D", "status": "Canceled"},
	})
	if err := kv.Set(ctx, Key, string(raw)); err != nil {
		t.Fatal(err)
	}
	list, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Status != domain.StatusOngoing || list[1].Status != domain.StatusCancelled {
		t.Fatalf("statuses not normalized: %v %v", list[0].Status, list[1].Status)
	}
}

func TestMergeIntoExistingByComposite(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	if _, err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	status := "completed"
	price := 500.0
	title := "Gold Earrings"
	artist := "Kreideprinz"
	list, err := s.Merge(ctx, domain.Delta{Title: &title, Artist: &artist, Status: &status, AgreedPrice: &price})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("merge duplicated the record: %d entries", len(list))
	}
	c, ok, err := s.Find(ctx, "Gold Earrings-Kreideprinz")
	if err != nil || !ok {
		t.Fatalf("find: %v %v", ok, err)
	}
	if c.Status != domain.StatusCompleted || c.AgreedPrice == nil || *c.AgreedPrice != 500 {
		t.Fatalf("delta not merged: %+v", c)
	}
}

func TestMergeIdempotent(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	status := "completed"
	title := "Gold Earrings"
	artist := "Kreideprinz"
	delta := domain.Delta{Title: &title, Artist: &artist, Status: &status}
	once, err := s.Merge(ctx, delta)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := s.Merge(ctx, delta)
	if err != nil {
		t.Fatal(err)
	}
	if len(once) != len(twice) {
		t.Fatalf("idempotence violated: %d vs %d", len(once), len(twice))
	}
	onceJSON, _ := json.Marshal(once)
	twiceJSON, _ := json.Marshal(twice)
	if string(onceJSON) != string(twiceJSON) {
		t.Fatalf("collections differ after repeat merge")
	}
}

func TestMergePrependsUnknownRecord(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	if _, err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	title := "Desk Gargoyle"
	artist := "Mossbank"
	list, err := s.Merge(ctx, domain.Delta{Title: &title, Artist: &artist})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	if list[0].Title != "Desk Gargoyle" {
		t.Fatalf("new record not prepended: %+v", list[0])
	}
	if list[0].CreatedAt == "" {
		t.Fatalf("new record missing createdAt")
	}
}

func TestDedupInvariantAfterMerges(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	title := "Gold Earrings"
	artist := "Kreideprinz"
	for i := 0; i < 5; i++ {
		if _, err := s.Merge(ctx, domain.Delta{Title: &title, Artist: &artist}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, c := range list {
		key := domain.ResolveIdentity(c)
		if seen[key] {
			t.Fatalf("duplicate identity %q", key)
		}
		seen[key] = true
	}
}

func TestRemoveByIdentityAcrossForms(t *testing.T) {
	s, kv := newTestStore()
	ctx := context.Background()
	raw, _ := json.Marshal([]domain.Commission{
		{ID: "legacy-1", Title: "Band Poster", Artist: "Ink&Iron", Date: "Feb 2, 2026", Status: domain.StatusOngoing},
		{Title: "Gold Earrings", Artist: "Kreideprinz", Status: domain.StatusPending},
	})
	if err := kv.Set(ctx, Key, string(raw)); err != nil {
		t.Fatal(err)
	}
	// A producer that only knows the legacy date composite must still remove
	// the record carrying an explicit id.
	list, err := s.RemoveByIdentity(ctx, "Band Poster-Ink&Iron-Feb 2, 2026")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "Gold Earrings" {
		t.Fatalf("removal missed the record: %+v", list)
	}
	// Removing by plain composite works too.
	list, err = s.RemoveByIdentity(ctx, "Gold Earrings-Kreideprinz")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty collection, got %+v", list)
	}
}

func TestMergeAtTargetsFetchedRecord(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	if _, err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	// Rename the artist on an id-less record: the merge must land on the
	// original record, not fork a new one.
	artist := "Kreideprinz II"
	status := "ongoing"
	list, err := s.MergeAt(ctx, "Gold Earrings-Kreideprinz", domain.Delta{Artist: &artist, Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("rename forked a duplicate: %d entries", len(list))
	}
	c, ok, _ := s.Find(ctx, "Gold Earrings-Kreideprinz II")
	if !ok || c.Status != domain.StatusOngoing {
		t.Fatalf("renamed record not found: %v %+v", ok, c)
	}
}
