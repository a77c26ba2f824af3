// Package reconcile carries commission deltas between screens. A screen that
// mutates a commission does not write to the destination screen's view
// directly; it pushes a payload into the inbox, and the destination applies it
// on activation. Payloads are acknowledged only after a successful apply, and
// an acknowledged payload is never applied again, so resuming a screen cannot
// replay a stale delta.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"commline/internal/domain"
	"commline/internal/social"
	"commline/internal/store"
)

// Kind discriminates the recognized payload shapes.
type Kind string

const (
	KindNew       Kind = "new"
	KindUpdated   Kind = "updated"
	KindCompleted Kind = "completed"
	KindCancelled Kind = "cancelled"
	// KindRemoved signals a block or not-interested removal.
	KindRemoved Kind = "removed"
)

// Payload is a delta attached to a screen transition. Removal payloads carry
// only the identity; the rest carry a partial commission.
type Payload struct {
	Kind     Kind         `json:"kind"`
	Delta    domain.Delta `json:"delta,omitempty"`
	Identity string       `json:"identity,omitempty"`
}

// Apply merges one payload into the stores.
func Apply(ctx context.Context, st *store.Store, soc *social.Store, p Payload) error {
	switch p.Kind {
	case KindNew, KindUpdated, KindCompleted, KindCancelled:
		_, err := st.Merge(ctx, p.Delta)
		return err
	case KindRemoved:
		identity := p.Identity
		if identity == "" {
			identity = domain.ResolveIdentity(p.Delta.Skeleton())
		}
		if err := soc.Block(ctx, identity); err != nil {
			return err
		}
		_, err := st.RemoveByIdentity(ctx, identity)
		return err
	default:
		return fmt.Errorf("unrecognized payload kind %q", p.Kind)
	}
}

// Inbox queues payloads for a destination screen.
type Inbox struct {
	Store  *store.Store
	Social *social.Store

	mu      sync.Mutex
	pending []Payload
}

func NewInbox(st *store.Store, soc *social.Store) *Inbox {
	return &Inbox{Store: st, Social: soc}
}

// Push enqueues a payload produced by another screen.
func (in *Inbox) Push(p Payload) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pending = append(in.pending, p)
}

// Len reports the number of unconsumed payloads.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// Drain applies every pending payload in arrival order. A payload is dropped
// from the queue only once its apply succeeds; a failing payload stays at the
// head and Drain returns, leaving the remainder queued for the next
// activation. Draining an empty inbox is a no-op, which makes consumption
// idempotent across repeated screen activations.
func (in *Inbox) Drain(ctx context.Context) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	applied := 0
	for len(in.pending) > 0 {
		p := in.pending[0]
		if err := Apply(ctx, in.Store, in.Social, p); err != nil {
			return applied, fmt.Errorf("apply %s payload: %w", p.Kind, err)
		}
		in.pending = in.pending[1:]
		applied++
	}
	return applied, nil
}
