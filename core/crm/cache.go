package crm

import "sync"

// BoardCache holds the board-visible lead list per filter signature and
// supports snapshot/rollback. It is a disposable projection of the lead
// store: never authoritative beyond the lifetime of one optimistic move.
type BoardCache interface {
	// Snapshot returns a deep copy of the cached leads for sig, if any.
	Snapshot(sig FilterSignature) ([]Lead, bool)
	// Put seeds the snapshot for sig, replacing any previous contents.
	Put(sig FilterSignature, leads []Lead)
	// Apply atomically replaces the cached leads for sig by running mutate
	// over the previous contents. Absent signatures are left untouched.
	Apply(sig FilterSignature, mutate func(leads []Lead) []Lead)
	// Restore replaces the cached contents for sig wholesale; rollback path.
	Restore(sig FilterSignature, leads []Lead)
	// Invalidate drops the snapshot for sig so the next read hits the store.
	Invalidate(sig FilterSignature)
	// InvalidateAll drops every snapshot.
	InvalidateAll()
}

type memoryBoardCache struct {
	mutex     sync.RWMutex
	snapshots map[string][]Lead
}

var _ BoardCache = (*memoryBoardCache)(nil)

// NewBoardCache returns an in-memory BoardCache. Leads are copied on the way
// in and out so callers can never alias cache-internal slices.
func NewBoardCache() BoardCache {
	return &memoryBoardCache{snapshots: make(map[string][]Lead)}
}

func copyLeads(leads []Lead) []Lead {
	if leads == nil {
		return nil
	}
	cp := make([]Lead, len(leads))
	copy(cp, leads)
	for i := range cp {
		if cp[i].Tags != nil {
			tags := make([]string, len(cp[i].Tags))
			copy(tags, cp[i].Tags)
			cp[i].Tags = tags
		}
	}
	return cp
}

func (c *memoryBoardCache) Snapshot(sig FilterSignature) ([]Lead, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	leads, ok := c.snapshots[sig.Key()]
	if !ok {
		return nil, false
	}
	return copyLeads(leads), true
}

func (c *memoryBoardCache) Put(sig FilterSignature, leads []Lead) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.snapshots[sig.Key()] = copyLeads(leads)
}

func (c *memoryBoardCache) Apply(sig FilterSignature, mutate func(leads []Lead) []Lead) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	key := sig.Key()
	prev, ok := c.snapshots[key]
	if !ok {
		return
	}
	c.snapshots[key] = copyLeads(mutate(copyLeads(prev)))
}

func (c *memoryBoardCache) Restore(sig FilterSignature, leads []Lead) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.snapshots[sig.Key()] = copyLeads(leads)
}

func (c *memoryBoardCache) Invalidate(sig FilterSignature) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.snapshots, sig.Key())
}

func (c *memoryBoardCache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.snapshots = make(map[string][]Lead)
}
