package verified

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"speedrun-bot/metrics"
	"speedrun-bot/model"
	"speedrun-bot/utils"
)

var errNotLoaded = errors.New("posted runs were never loaded, keeping them in memory only")

// PostedRuns is the ordered set of run ids already published, shared by
// every watched leaderboard. Each Add persists the whole set under the same
// lock, so concurrent leaderboards never overwrite each other's ids.
//
// Until a Load succeeds the set is in-memory only, so a store that failed
// to load is never overwritten with a partial list.
type PostedRuns struct {
	store model.PostedRunStore

	mu     sync.Mutex
	ids    []string
	index  map[string]struct{}
	loaded bool
}

func NewPostedRuns(store model.PostedRunStore) *PostedRuns {
	return &PostedRuns{
		store: store,
		index: make(map[string]struct{}),
	}
}

// Load reads the persisted ids and merges them ahead of any ids added in
// memory since.
func (p *PostedRuns) Load(ctx context.Context) error {
	persisted, err := p.store.LoadPostedRuns(ctx)
	if err != nil {
		var persistenceErr *utils.PersistenceError
		if !errors.As(err, &persistenceErr) {
			err = &utils.PersistenceError{Op: "load", Err: err}
		}
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	merged := make([]string, 0, len(persisted)+len(p.ids))
	index := make(map[string]struct{}, len(persisted)+len(p.ids))
	for _, id := range append(persisted, p.ids...) {
		if _, ok := index[id]; ok {
			continue
		}
		index[id] = struct{}{}
		merged = append(merged, id)
	}
	pending := len(merged) > len(persisted)

	p.ids = merged
	p.index = index
	p.loaded = true
	metrics.SetPostedRuns(len(p.ids))

	if pending {
		return p.saveLocked(ctx)
	}
	return nil
}

// EnsureLoaded loads the set unless an earlier load succeeded. Failures are
// logged and leave the set in-memory only.
func (p *PostedRuns) EnsureLoaded(ctx context.Context) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if loaded {
		return
	}
	if err := p.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("[VerifiedRuns] Failed to load posted runs, continuing with in-memory set")
	}
}

func (p *PostedRuns) Contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.index[id]
	return ok
}

// Add records id as published and persists the set. The id stays in memory
// even when persisting fails.
func (p *PostedRuns) Add(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[id]; ok {
		return nil
	}
	p.index[id] = struct{}{}
	p.ids = append(p.ids, id)
	metrics.SetPostedRuns(len(p.ids))

	if !p.loaded {
		return &utils.PersistenceError{Op: "save", Err: errNotLoaded}
	}
	return p.saveLocked(ctx)
}

func (p *PostedRuns) saveLocked(ctx context.Context) error {
	ids := make([]string, len(p.ids))
	copy(ids, p.ids)
	if err := p.store.SavePostedRuns(ctx, ids); err != nil {
		var persistenceErr *utils.PersistenceError
		if !errors.As(err, &persistenceErr) {
			err = &utils.PersistenceError{Op: "save", Err: err}
		}
		return err
	}
	return nil
}

func (p *PostedRuns) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// IDs returns a copy of the ids, oldest first.
func (p *PostedRuns) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(p.ids))
	copy(ids, p.ids)
	return ids
}
