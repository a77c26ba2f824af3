package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"commline/internal/config"
	"commline/internal/domain"
	"commline/internal/events"
	"commline/internal/social"
	"commline/internal/store"
)

// ConfirmCancellation is the phrase a user must type, compared
// case-insensitively after trimming, before a cancellation goes through.
const ConfirmCancellation = "confirm cancellation"

var (
	// ErrCannotChangeStatus guards terminal records: a cancelled or completed
	// commission never re-enters the lifecycle.
	ErrCannotChangeStatus = errors.New("cannot change status")
	// ErrProofRequired rejects completion of an unclaimed commission without
	// proof-of-payment evidence.
	ErrProofRequired = errors.New("proof of payment is required to complete")
	// ErrConfirmationMismatch rejects a cancellation whose typed confirmation
	// does not match ConfirmCancellation.
	ErrConfirmationMismatch = errors.New("confirmation phrase does not match")
	// ErrNotFound reports an identity with no record in the store.
	ErrNotFound = errors.New("commission not found")
)

type Engine struct {
	Store  *store.Store
	Social *social.Store
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(st *store.Store, soc *social.Store, ev events.Writer, cfg *config.Config) Engine {
	return Engine{
		Store:  st,
		Social: soc,
		Events: ev,
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) actor() string {
	if e.Config != nil && e.Config.Viewer.Name != "" {
		return e.Config.Viewer.Name
	}
	return "local-user"
}

// SubmitOptions are parameters for submitting a commission.
type SubmitOptions struct {
	Title           string
	Description     string
	Category        string
	Artist          string
	ContactEmail    string
	Date            string
	ReferencePhotos []string
	// Direct marks the directly-agreed flow: both parties already consented,
	// so the commission starts ongoing and needs an agreed price up front.
	Direct      bool
	AgreedPrice float64
}

func (opts SubmitOptions) validate() error {
	// First missing field wins.
	switch {
	case strings.TrimSpace(opts.Title) == "":
		return errors.New("title is required")
	case strings.TrimSpace(opts.Description) == "":
		return errors.New("description is required")
	case strings.TrimSpace(opts.Date) == "":
		return errors.New("date is required")
	case opts.Direct && opts.AgreedPrice <= 0:
		return errors.New("price is required")
	case strings.TrimSpace(opts.ContactEmail) == "":
		return errors.New("contact email is required")
	}
	return nil
}

// Submit validates and stores a new commission. The generic request flow
// starts pending; the directly-agreed flow starts ongoing.
func (e Engine) Submit(ctx context.Context, opts SubmitOptions) (domain.Commission, error) {
	if err := opts.validate(); err != nil {
		return domain.Commission{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	c := domain.Commission{
		ID:              uuid.New().String(),
		Title:           strings.TrimSpace(opts.Title),
		Description:     strings.TrimSpace(opts.Description),
		Category:        opts.Category,
		Artist:          strings.TrimSpace(opts.Artist),
		ContactEmail:    strings.TrimSpace(opts.ContactEmail),
		ReferencePhotos: opts.ReferencePhotos,
		Status:          domain.StatusPending,
		Date:            opts.Date,
		CreatedAt:       now,
	}
	if opts.Direct {
		c.Status = domain.StatusOngoing
		price := opts.AgreedPrice
		c.AgreedPrice = &price
	}
	// A resubmission with the same title and artist merges into the existing
	// record rather than minting a duplicate under a fresh id.
	existing, ok, err := e.Store.Find(ctx, c.Title+"-"+c.Artist)
	if err != nil {
		return c, err
	}
	delta := commissionDelta(c)
	if ok {
		c.ID = existing.ID
		delta.ID = existing.ID
		delta.CreatedAt = nil
		if _, err := e.Store.MergeAt(ctx, domain.ResolveIdentity(existing), delta); err != nil {
			return c, err
		}
	} else if _, err := e.Store.Merge(ctx, delta); err != nil {
		return c, err
	}
	e.append(ctx, "commission.submitted", domain.ResolveIdentity(c), events.EventPayload{"title": c.Title, "status": string(c.Status)})
	return c, nil
}

// Accept moves a pending commission to ongoing and records the fulfilling
// artist.
func (e Engine) Accept(ctx context.Context, identity, artist string) (domain.Commission, error) {
	c, err := e.get(ctx, identity)
	if err != nil {
		return c, err
	}
	if err := ensureStatusTransition(c.Status, domain.StatusOngoing); err != nil {
		return c, err
	}
	status := string(domain.StatusOngoing)
	delta := domain.Delta{ID: c.ID, Status: &status}
	if c.ID == "" {
		delta.Title, delta.Artist = &c.Title, &c.Artist
	}
	if artist != "" {
		delta.Artist = &artist
	}
	return e.applyDelta(ctx, "commission.accepted", c, delta)
}

// MarkDelivered moves an ongoing commission to unclaimed: the deliverable is
// ready and awaiting payment confirmation.
func (e Engine) MarkDelivered(ctx context.Context, identity string) (domain.Commission, error) {
	c, err := e.get(ctx, identity)
	if err != nil {
		return c, err
	}
	if err := ensureStatusTransition(c.Status, domain.StatusUnclaimed); err != nil {
		return c, err
	}
	status := string(domain.StatusUnclaimed)
	delta := domain.Delta{ID: c.ID, Status: &status}
	if c.ID == "" {
		delta.Title, delta.Artist = &c.Title, &c.Artist
	}
	return e.applyDelta(ctx, "commission.delivered", c, delta)
}

// CompleteOptions carry the completion evidence and terms.
type CompleteOptions struct {
	Notes       string
	AgreedPrice float64
	ProofPhotos []string
}

// Complete finishes a commission. Completion from unclaimed requires
// proof-of-payment photos; the status, timestamp, notes and price land in a
// single merged write.
func (e Engine) Complete(ctx context.Context, identity string, opts CompleteOptions) (domain.Commission, error) {
	c, err := e.get(ctx, identity)
	if err != nil {
		return c, err
	}
	if err := ensureStatusTransition(c.Status, domain.StatusCompleted); err != nil {
		return c, err
	}
	if c.Status == domain.StatusUnclaimed && len(opts.ProofPhotos) == 0 {
		return c, ErrProofRequired
	}
	status := string(domain.StatusCompleted)
	completedAt := e.now().UTC().Format(time.RFC3339)
	delta := domain.Delta{
		ID:          c.ID,
		Status:      &status,
		CompletedAt: &completedAt,
	}
	if c.ID == "" {
		delta.Title, delta.Artist = &c.Title, &c.Artist
	}
	if opts.Notes != "" {
		delta.CompletionNotes = &opts.Notes
	}
	if opts.AgreedPrice > 0 {
		price := opts.AgreedPrice
		delta.AgreedPrice = &price
	}
	if len(opts.ProofPhotos) > 0 {
		photos := opts.ProofPhotos
		delta.ProofPhotos = &photos
	}
	return e.applyDelta(ctx, "commission.completed", c, delta)
}

// Cancel cancels an ongoing commission. The typed confirmation must equal
// ConfirmCancellation, case-insensitively after trimming; anything else
// rejects the transition without side effects.
func (e Engine) Cancel(ctx context.Context, identity, reason, confirmation string) (domain.Commission, error) {
	c, err := e.get(ctx, identity)
	if err != nil {
		return c, err
	}
	if err := ensureStatusTransition(c.Status, domain.StatusCancelled); err != nil {
		return c, err
	}
	if !strings.EqualFold(strings.TrimSpace(confirmation), ConfirmCancellation) {
		return c, ErrConfirmationMismatch
	}
	status := string(domain.StatusCancelled)
	cancelledAt := e.now().UTC().Format(time.RFC3339)
	delta := domain.Delta{
		ID:          c.ID,
		Status:      &status,
		CancelledAt: &cancelledAt,
	}
	if c.ID == "" {
		delta.Title, delta.Artist = &c.Title, &c.Artist
	}
	if reason != "" {
		delta.CancellationReason = &reason
	}
	return e.applyDelta(ctx, "commission.cancelled", c, delta)
}

// NotInterested removes the commission from the viewer's collection and
// registers it in both the not-interested and blocked sets. This only touches
// local state; the owner's copy elsewhere is unaffected.
func (e Engine) NotInterested(ctx context.Context, identity string) error {
	if err := e.Social.MarkNotInterested(ctx, identity); err != nil {
		return err
	}
	if err := e.Social.Block(ctx, identity); err != nil {
		return err
	}
	if _, err := e.Store.RemoveByIdentity(ctx, identity); err != nil {
		return err
	}
	e.append(ctx, "commission.hidden", identity, events.EventPayload{"reason": "not_interested"})
	return nil
}

// Block hides the commission from the viewer and records it as blocked.
func (e Engine) Block(ctx context.Context, identity string) error {
	if err := e.Social.Block(ctx, identity); err != nil {
		return err
	}
	if _, err := e.Store.RemoveByIdentity(ctx, identity); err != nil {
		return err
	}
	e.append(ctx, "commission.blocked", identity, nil)
	return nil
}

// Report flags the commission locally. The record stays visible.
func (e Engine) Report(ctx context.Context, identity string) error {
	if err := e.Social.Report(ctx, identity); err != nil {
		return err
	}
	e.append(ctx, "commission.reported", identity, nil)
	return nil
}

// ToggleLike flips the like state and count for the identity.
func (e Engine) ToggleLike(ctx context.Context, identity string) (bool, int, error) {
	liked, count, err := e.Social.ToggleLike(ctx, identity)
	if err != nil {
		return liked, count, err
	}
	e.append(ctx, "like.toggled", identity, events.EventPayload{"liked": liked, "count": count})
	return liked, count, nil
}

// SetFollowing records whether the viewer follows the artist.
func (e Engine) SetFollowing(ctx context.Context, artist string, following bool) error {
	if err := e.Social.SetFollowing(ctx, artist, following); err != nil {
		return err
	}
	e.append(ctx, "artist.followed", artist, events.EventPayload{"following": following})
	return nil
}

// Visible returns the viewer's collection with blocked and not-interested
// records filtered out. Screens call this every time they regain focus.
func (e Engine) Visible(ctx context.Context) ([]domain.Commission, error) {
	list, err := e.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, c := range list {
		if e.hidden(ctx, c) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (e Engine) hidden(ctx context.Context, c domain.Commission) bool {
	for _, form := range domain.IdentityCandidates(c) {
		if e.Social.IsBlocked(ctx, form) || e.Social.IsNotInterested(ctx, form) {
			return true
		}
	}
	return false
}

func (e Engine) get(ctx context.Context, identity string) (domain.Commission, error) {
	c, ok, err := e.Store.Find(ctx, identity)
	if err != nil {
		return c, err
	}
	if !ok {
		return c, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	return c, nil
}

func (e Engine) applyDelta(ctx context.Context, evtType string, prev domain.Commission, delta domain.Delta) (domain.Commission, error) {
	if _, err := e.Store.MergeAt(ctx, domain.ResolveIdentity(prev), delta); err != nil {
		return prev, err
	}
	updated := delta.Apply(prev)
	e.append(ctx, evtType, domain.ResolveIdentity(updated), events.EventPayload{
		"from_status": string(prev.Status),
		"to_status":   string(updated.Status),
	})
	return updated, nil
}

func (e Engine) append(ctx context.Context, evtType, entityID string, payload events.EventPayload) {
	if err := e.Events.Append(ctx, evtType, "commission", entityID, e.actor(), payload); err != nil {
		// The event log is advisory; a failed append never blocks the action.
		log.Printf("events: append %s: %v", evtType, err)
	}
}

// ensureStatusTransition enforces the lifecycle:
// pending -> ongoing -> {unclaimed, completed, cancelled}, unclaimed ->
// completed. Cancelled and completed are terminal.
func ensureStatusTransition(oldStatus, newStatus domain.Status) error {
	if oldStatus.Terminal() {
		return ErrCannotChangeStatus
	}
	switch oldStatus {
	case domain.StatusPending:
		if newStatus == domain.StatusOngoing {
			return nil
		}
	case domain.StatusOngoing:
		if newStatus == domain.StatusUnclaimed || newStatus == domain.StatusCompleted || newStatus == domain.StatusCancelled {
			return nil
		}
	case domain.StatusUnclaimed:
		if newStatus == domain.StatusCompleted {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition %s -> %s", oldStatus, newStatus)
}

func commissionDelta(c domain.Commission) domain.Delta {
	status := string(c.Status)
	d := domain.Delta{
		ID:     c.ID,
		Title:  &c.Title,
		Status: &status,
	}
	if c.Description != "" {
		d.Description = &c.Description
	}
	if c.Category != "" {
		d.Category = &c.Category
	}
	if c.Artist != "" {
		d.Artist = &c.Artist
	}
	if c.ContactEmail != "" {
		d.ContactEmail = &c.ContactEmail
	}
	if len(c.ReferencePhotos) > 0 {
		photos := c.ReferencePhotos
		d.ReferencePhotos = &photos
	}
	if c.Date != "" {
		d.Date = &c.Date
	}
	if c.CreatedAt != "" {
		d.CreatedAt = &c.CreatedAt
	}
	if c.AgreedPrice != nil {
		d.AgreedPrice = c.AgreedPrice
	}
	return d
}
