package memory

import (
	"sync"
	"time"

	"caseforge-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// CaseStateRepository holds per-session runtime state. Idle sessions expire
// after a day; the durable snapshots are the recovery path, so eviction only
// costs a reload.
type CaseStateRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewCaseStateRepository() *CaseStateRepository {
	c := cache.New(24*time.Hour, 1*time.Hour)
	return &CaseStateRepository{
		cache: c,
	}
}

// GetOrCreate returns the state for sessionID, creating it on first access.
// Access is serialized so two concurrent requests for a fresh session get the
// same state value.
func (r *CaseStateRepository) GetOrCreate(sessionID string) *store.CaseState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if x, found := r.cache.Get(sessionID); found {
		state := x.(*store.CaseState)
		r.cache.Set(sessionID, state, cache.DefaultExpiration) // refresh TTL
		return state
	}
	state := store.NewCaseState(sessionID)
	r.cache.Set(sessionID, state, cache.DefaultExpiration)
	return state
}

func (r *CaseStateRepository) Get(sessionID string) (*store.CaseState, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.CaseState), true
	}
	return nil, false
}

func (r *CaseStateRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
