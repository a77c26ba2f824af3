package reconcile

import (
	"context"
	"errors"
	"testing"

	"commline/internal/domain"
	"commline/internal/kvstore"
	"commline/internal/social"
	"commline/internal/store"
)

// flakyKV forwards to an underlying store but fails writes on demand.
type flakyKV struct {
	kvstore.Store
	failSet bool
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func newTestInbox() (*Inbox, *store.Store, *social.Store, *flakyKV) {
	kv := &flakyKV{Store: kvstore.NewMemory()}
	st := store.New(kv, []domain.Commission{
		{Title: "Gold Earrings", Artist: "Kreideprinz", Status: domain.StatusPending},
	})
	soc := social.New(kv)
	return NewInbox(st, soc), st, soc, kv
}

func updatePayload(status string) Payload {
	title := "Gold Earrings"
	artist := "Kreideprinz"
	return Payload{
		Kind:  KindUpdated,
		Delta: domain.Delta{Title: &title, Artist: &artist, Status: &status},
	}
}

func TestDrainAppliesAndAcknowledges(t *testing.T) {
	in, st, _, _ := newTestInbox()
	ctx := context.Background()
	in.Push(updatePayload("ongoing"))

	applied, err := in.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if applied != 1 || in.Len() != 0 {
		t.Fatalf("expected 1 applied and empty inbox, got %d / %d", applied, in.Len())
	}
	c, ok, err := st.Find(ctx, "Gold Earrings-Kreideprinz")
	if err != nil || !ok {
		t.Fatalf("find: %v %v", ok, err)
	}
	if c.Status != domain.StatusOngoing {
		t.Fatalf("delta not applied: %v", c.Status)
	}

	// Re-activating the destination drains an empty inbox; the payload must
	// not be applied twice.
	applied, err = in.Drain(ctx)
	if err != nil || applied != 0 {
		t.Fatalf("second drain replayed payloads: %d %v", applied, err)
	}
}

func TestRemovedPayloadBlocksAndRemoves(t *testing.T) {
	in, st, soc, _ := newTestInbox()
	ctx := context.Background()
	in.Push(Payload{Kind: KindRemoved, Identity: "Gold Earrings-Kreideprinz"})

	if _, err := in.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, ok, _ := st.Find(ctx, "Gold Earrings-Kreideprinz"); ok {
		t.Fatalf("removed record still present")
	}
	if !soc.IsBlocked(ctx, "Gold Earrings-Kreideprinz") {
		t.Fatalf("removal did not block the identity")
	}
}

func TestFailedApplyStaysQueued(t *testing.T) {
	in, st, _, kv := newTestInbox()
	ctx := context.Background()
	// Warm the store so the seed blob is persisted before writes start failing.
	if _, err := st.Load(ctx); err != nil {
		t.Fatal(err)
	}
	in.Push(updatePayload("ongoing"))
	in.Push(updatePayload("completed"))

	kv.failSet = true
	applied, err := in.Drain(ctx)
	if err == nil {
		t.Fatalf("expected drain failure")
	}
	if applied != 0 || in.Len() != 2 {
		t.Fatalf("failed payload was acknowledged: %d applied, %d queued", applied, in.Len())
	}

	kv.failSet = false
	applied, err = in.Drain(ctx)
	if err != nil {
		t.Fatalf("drain after recovery: %v", err)
	}
	if applied != 2 || in.Len() != 0 {
		t.Fatalf("queued payloads not applied after recovery: %d / %d", applied, in.Len())
	}
	c, _, _ := st.Find(ctx, "Gold Earrings-Kreideprinz")
	if c.Status != domain.StatusCompleted {
		t.Fatalf("expected completed after recovery, got %v", c.Status)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	in, _, _, _ := newTestInbox()
	in.Push(Payload{Kind: Kind("mystery")})
	if _, err := in.Drain(context.Background()); err == nil {
		t.Fatalf("expected error for unrecognized kind")
	}
}
