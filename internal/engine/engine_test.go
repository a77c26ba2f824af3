package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"commline/internal/domain"
	"commline/internal/events"
	"commline/internal/kvstore"
	"commline/internal/social"
	"commline/internal/store"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	kv := kvstore.NewMemory()
	st := store.New(kv, nil)
	soc := social.New(kv)
	e := New(st, soc, events.Writer{}, nil)
	e.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	st.Now = e.Now
	return e
}

func submitOpts() SubmitOptions {
	return SubmitOptions{
		Title:        "Gold Earrings",
		Description:  "Pair of engraved earrings",
		Artist:       "Kreideprinz",
		ContactEmail: "buyer@example.com",
		Date:         "Jan 12, 2026",
	}
}

func TestSubmitValidationOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		mut  func(*SubmitOptions)
		want string
	}{
		{"missing title", func(o *SubmitOptions) { o.Title = " " }, "title is required"},
		{"missing description", func(o *SubmitOptions) { o.Description = "" }, "description is required"},
		{"missing date", func(o *SubmitOptions) { o.Date = "" }, "date is required"},
		{"direct without price", func(o *SubmitOptions) { o.Direct = true; o.AgreedPrice = 0 }, "price is required"},
		{"missing email", func(o *SubmitOptions) { o.ContactEmail = "" }, "contact email is required"},
	}
	for _, tc := range cases {
		opts := submitOpts()
		tc.mut(&opts)
		if _, err := e.Submit(ctx, opts); err == nil || err.Error() != tc.want {
			t.Fatalf("%s: got %v, want %q", tc.name, err, tc.want)
		}
	}
}

func TestSubmitStartsPending(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if c.ID == "" {
		t.Fatalf("submit did not assign an id")
	}
	if c.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %v", c.Status)
	}
	stored, ok, err := e.Store.Find(ctx, c.ID)
	if err != nil || !ok {
		t.Fatalf("find: %v %v", ok, err)
	}
	if stored.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("createdAt not stamped: %q", stored.CreatedAt)
	}
}

func TestSubmitDirectStartsOngoing(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	opts := submitOpts()
	opts.Direct = true
	opts.AgreedPrice = 120
	c, err := e.Submit(ctx, opts)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if c.Status != domain.StatusOngoing {
		t.Fatalf("expected ongoing, got %v", c.Status)
	}
	if c.AgreedPrice == nil || *c.AgreedPrice != 120 {
		t.Fatalf("agreed price not recorded: %v", c.AgreedPrice)
	}
}

func TestResubmitMergesIntoExisting(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	first, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("resubmission minted a new record: %q vs %q", second.ID, first.ID)
	}
	list, err := e.Store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("resubmission duplicated the record: %d entries", len(list))
	}
}

func TestLifecyclePathWithProof(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Accept(ctx, c.ID, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.MarkDelivered(ctx, c.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	// Completing from unclaimed without evidence must be rejected and must not
	// touch the record.
	if _, err := e.Complete(ctx, c.ID, CompleteOptions{}); !errors.Is(err, ErrProofRequired) {
		t.Fatalf("expected ErrProofRequired, got %v", err)
	}
	stored, _, _ := e.Store.Find(ctx, c.ID)
	if stored.Status != domain.StatusUnclaimed {
		t.Fatalf("failed completion changed status to %v", stored.Status)
	}
	updated, err := e.Complete(ctx, c.ID, CompleteOptions{
		Notes:       "paid in full",
		AgreedPrice: 250,
		ProofPhotos: []string{"receipt.jpg"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %v", updated.Status)
	}
	stored, _, _ = e.Store.Find(ctx, c.ID)
	if stored.CompletedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("completedAt not stamped alongside status: %q", stored.CompletedAt)
	}
	if len(stored.ProofPhotos) != 1 || stored.CompletionNotes != "paid in full" {
		t.Fatalf("completion evidence not persisted: %+v", stored)
	}
}

func TestCompleteFromOngoingNeedsNoProof(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Accept(ctx, c.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Complete(ctx, c.ID, CompleteOptions{}); err != nil {
		t.Fatalf("complete from ongoing: %v", err)
	}
}

func TestCancelConfirmationPhrase(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Accept(ctx, c.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Cancel(ctx, c.ID, "changed my mind", "confirm"); !errors.Is(err, ErrConfirmationMismatch) {
		t.Fatalf("expected ErrConfirmationMismatch, got %v", err)
	}
	stored, _, _ := e.Store.Find(ctx, c.ID)
	if stored.Status != domain.StatusOngoing {
		t.Fatalf("rejected cancellation changed status to %v", stored.Status)
	}
	// Case and surrounding whitespace are forgiven.
	if _, err := e.Cancel(ctx, c.ID, "changed my mind", "  Confirm Cancellation  "); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _, _ = e.Store.Find(ctx, c.ID)
	if stored.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %v", stored.Status)
	}
	if stored.CancelledAt == "" || stored.CancellationReason != "changed my mind" {
		t.Fatalf("cancellation metadata missing: %+v", stored)
	}
}

func TestTerminalRecordsRejectTransitions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Accept(ctx, c.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Cancel(ctx, c.ID, "", ConfirmCancellation); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Accept(ctx, c.ID, ""); !errors.Is(err, ErrCannotChangeStatus) {
		t.Fatalf("accept on cancelled: got %v", err)
	}
	if _, err := e.Complete(ctx, c.ID, CompleteOptions{}); !errors.Is(err, ErrCannotChangeStatus) {
		t.Fatalf("complete on cancelled: got %v", err)
	}
	if _, err := e.Cancel(ctx, c.ID, "", ConfirmCancellation); !errors.Is(err, ErrCannotChangeStatus) {
		t.Fatalf("cancel on cancelled: got %v", err)
	}
}

func TestInvalidTransitionIsNotTerminalError(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	// pending -> unclaimed skips the ongoing step.
	_, err = e.MarkDelivered(ctx, c.ID)
	if err == nil {
		t.Fatalf("expected transition error")
	}
	if errors.Is(err, ErrCannotChangeStatus) {
		t.Fatalf("non-terminal rejection mislabelled: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid status transition") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNotInterestedRemovesAndBlocks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.NotInterested(ctx, c.ID); err != nil {
		t.Fatalf("not interested: %v", err)
	}
	if _, ok, _ := e.Store.Find(ctx, c.ID); ok {
		t.Fatalf("record still in collection")
	}
	if !e.Social.IsBlocked(ctx, c.ID) || !e.Social.IsNotInterested(ctx, c.ID) {
		t.Fatalf("moderation sets not updated")
	}
	visible, err := e.Visible(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range visible {
		if v.ID == c.ID {
			t.Fatalf("hidden record still visible")
		}
	}
}

func TestVisibleFiltersBlocked(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	first, err := e.Submit(ctx, submitOpts())
	if err != nil {
		t.Fatal(err)
	}
	opts := submitOpts()
	opts.Title = "Band Poster"
	opts.Artist = "Ink&Iron"
	second, err := e.Submit(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Block(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	visible, err := e.Visible(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ID != second.ID {
		t.Fatalf("unexpected visible set: %+v", visible)
	}
}

func TestToggleLikePassesThrough(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	liked, count, err := e.ToggleLike(ctx, "5")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !liked || count != 1 {
		t.Fatalf("expected liked with count 1, got %v %d", liked, count)
	}
	liked, count, err = e.ToggleLike(ctx, "5")
	if err != nil {
		t.Fatal(err)
	}
	if liked || count != 0 {
		t.Fatalf("expected unliked with count 0, got %v %d", liked, count)
	}
}
