// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package wardrobe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Ruhadaam/Wardrobe-sub000/closet"
)

// Phase is the provider's observable loading state.
type Phase int

const (
	// PhaseSignedOut means no user is active; the item list is empty.
	PhaseSignedOut Phase = iota
	// PhaseLoading means a two-phase load is in flight.
	PhaseLoading
	// PhaseReady means the last load settled (successfully or not).
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseSignedOut:
		return "signed_out"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// Loader is the facade surface the provider drives. *Service implements it.
type Loader interface {
	FetchAndSync(ctx context.Context, ownerID string) ([]closet.GarmentRecord, error)
	ReadLocal(ctx context.Context, ownerID string) []closet.GarmentRecord
}

// Provider holds the UI-facing item list for the signed-in user and drives
// the two-phase load: an immediate paint from the cache when it has data,
// then the remote-synced snapshot, which always supersedes the cache paint
// within one load cycle.
//
// SetUser and Refresh block on the remote fetch; callers run them off the
// UI thread. Accessors and the change callback are safe to use from any
// goroutine.
type Provider struct {
	loader   Loader
	logger   *slog.Logger
	onChange func()

	mu              sync.Mutex
	owner           string
	phase           Phase
	items           []closet.GarmentRecord
	initialLoadDone bool
	lastSyncErr     error
}

// NewProvider creates a provider in the SignedOut state. onChange, when
// non-nil, is invoked after every observable state change (outside the
// provider lock).
func NewProvider(loader Loader, onChange func(), logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		loader:   loader,
		logger:   logger,
		onChange: onChange,
		phase:    PhaseSignedOut,
		// Nothing will ever load for a signed-out session; mark the
		// initial load complete so splash gates do not wait forever.
		initialLoadDone: true,
	}
}

// SetUser switches the active user. An empty ownerID signs out: the
// in-memory list is cleared but the cache store is not, so re-login paints
// instantly (owner scoping prevents cross-user leakage). A new owner starts
// a load cycle.
func (p *Provider) SetUser(ctx context.Context, ownerID string) {
	p.mu.Lock()
	if ownerID == p.owner {
		p.mu.Unlock()
		return
	}

	if ownerID == "" {
		p.owner = ""
		p.phase = PhaseSignedOut
		p.items = nil
		p.lastSyncErr = nil
		p.initialLoadDone = true
		p.mu.Unlock()
		p.notify()
		return
	}

	p.owner = ownerID
	p.phase = PhaseLoading
	p.items = nil
	p.lastSyncErr = nil
	p.initialLoadDone = false
	p.mu.Unlock()
	p.notify()

	p.load(ctx, ownerID)
}

// Refresh re-runs the load cycle for the current user. No-op when signed
// out.
func (p *Provider) Refresh(ctx context.Context) {
	p.mu.Lock()
	ownerID := p.owner
	if ownerID == "" {
		p.mu.Unlock()
		return
	}
	p.phase = PhaseLoading
	p.mu.Unlock()
	p.notify()

	p.load(ctx, ownerID)
}

// load runs the two phases sequentially: the cache paint must never land
// after the remote result within the same cycle.
func (p *Provider) load(ctx context.Context, ownerID string) {
	if local := p.loader.ReadLocal(ctx, ownerID); len(local) > 0 {
		p.mu.Lock()
		if p.owner == ownerID {
			p.items = local
		}
		p.mu.Unlock()
		p.notify()
	}

	recs, err := p.loader.FetchAndSync(ctx, ownerID)

	p.mu.Lock()
	if p.owner != ownerID {
		// User changed while this load was in flight; drop the result.
		p.mu.Unlock()
		return
	}
	if err != nil {
		// Keep whatever the cache paint showed; the sync failure is
		// surfaced through LastSyncErr, not by blanking the list.
		p.lastSyncErr = err
		p.logger.Warn("wardrobe sync failed", "owner_id", ownerID, "error", err)
	} else {
		p.items = recs
		p.lastSyncErr = nil
	}
	p.phase = PhaseReady
	p.initialLoadDone = true
	p.mu.Unlock()
	p.notify()
}

// Items returns the current UI-facing item list.
func (p *Provider) Items() []closet.GarmentRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]closet.GarmentRecord, len(p.items))
	copy(out, p.items)
	return out
}

// Phase returns the current loading phase.
func (p *Provider) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// InitialLoadComplete reports whether the first load cycle for the current
// session has settled. True immediately when signed out.
func (p *Provider) InitialLoadComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialLoadDone
}

// LastSyncErr returns the error from the most recent fetch-and-sync, or nil
// after a successful pass.
func (p *Provider) LastSyncErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSyncErr
}

func (p *Provider) notify() {
	if p.onChange != nil {
		p.onChange()
	}
}
