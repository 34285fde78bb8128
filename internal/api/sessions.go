package api

import (
	"sync"
	"time"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/cart"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/catalog"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/order"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/review"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/session"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/wishlist"
)

// StoreSet bundles one browser session's stores. They share a gateway
// whose token comes from that session's storage, so the session store
// stays the single writer of the token.
type StoreSet struct {
	Session  *session.Store
	Cart     *cart.Store
	Orders   *order.Store
	Catalog  *catalog.Store
	Reviews  *review.Store
	Wishlist *wishlist.Store
}

// StorageFactory builds the token persistence backend for one browser
// session.
type StorageFactory func(sessionID string) session.Storage

// maxSessions caps how many store sets are held at once; beyond it the
// least recently seen session is evicted. Its persisted token survives
// eviction, only the in-memory stores are rebuilt on the next visit.
const maxSessions = 4096

type registryEntry struct {
	set      *StoreSet
	lastSeen time.Time
}

// Registry hands out a StoreSet per browser session, creating one on
// first sight of the session cookie.
type Registry struct {
	baseURL string
	timeout time.Duration
	storage StorageFactory
	maxSets int

	mu   sync.Mutex
	sets map[string]*registryEntry
}

func NewRegistry(baseURL string, timeout time.Duration, storage StorageFactory) *Registry {
	return &Registry{
		baseURL: baseURL,
		timeout: timeout,
		storage: storage,
		maxSets: maxSessions,
		sets:    make(map[string]*registryEntry),
	}
}

// Get returns the store set for a session, creating it if needed.
func (r *Registry) Get(sessionID string) *StoreSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.sets[sessionID]; ok {
		entry.lastSeen = time.Now()
		return entry.set
	}

	if len(r.sets) >= r.maxSets {
		r.evictOldest()
	}

	storage := r.storage(sessionID)
	gw := gateway.New(r.baseURL, r.timeout, session.TokenSource(storage))
	set := &StoreSet{
		Session:  session.New(gw, storage),
		Cart:     cart.New(gw),
		Orders:   order.New(gw),
		Catalog:  catalog.New(gw),
		Reviews:  review.New(gw),
		Wishlist: wishlist.New(gw),
	}
	r.sets[sessionID] = &registryEntry{set: set, lastSeen: time.Now()}
	return set
}

// evictOldest drops the least recently seen session. Caller holds r.mu.
func (r *Registry) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, entry := range r.sets {
		if oldestID == "" || entry.lastSeen.Before(oldest) {
			oldestID = id
			oldest = entry.lastSeen
		}
	}
	if oldestID != "" {
		delete(r.sets, oldestID)
	}
}

// Drop forgets a session's stores; logout calls it so the next request
// on the same cookie rebuilds them from persisted state.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, sessionID)
}
