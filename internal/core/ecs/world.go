package ecs

// World stores the root objects of loaded scenes: a name and an ordered list
// of heterogeneous components per entity. Destruction is deferred to the
// cleanup phase through MarkForDestruction and FlushDestroyQueue.
// Single-goroutine access only (game loop).
type World struct {
	pool         *EntityPool
	names        map[EntityID]string
	components   map[EntityID][]any
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		names:        make(map[EntityID]string, 64),
		components:   make(map[EntityID][]any, 64),
		destroyQueue: make([]EntityID, 0, 16),
	}
}

// CreateEntity adds a named entity holding comps in the given order.
func (w *World) CreateEntity(name string, comps ...any) EntityID {
	id := w.pool.Create()
	w.names[id] = name
	w.components[id] = append([]any(nil), comps...)
	return id
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Name returns the entity's name, or "" once it is destroyed.
func (w *World) Name(id EntityID) string {
	return w.names[id]
}

// Components returns the entity's components, or nil once it is destroyed.
func (w *World) Components(id EntityID) []any {
	return w.components[id]
}

// AddComponent appends c to a live entity.
func (w *World) AddComponent(id EntityID, c any) bool {
	if !w.pool.Alive(id) {
		return false
	}
	w.components[id] = append(w.components[id], c)
	return true
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// CancelDestruction drops id from the destroy queue. It reports whether the
// entity was queued.
func (w *World) CancelDestruction(id EntityID) bool {
	found := false
	kept := w.destroyQueue[:0]
	for _, q := range w.destroyQueue {
		if q == id {
			found = true
			continue
		}
		kept = append(kept, q)
	}
	w.destroyQueue = kept
	return found
}

// Pending returns how many entities wait for the next flush.
func (w *World) Pending() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys every queued entity and returns how many were
// actually destroyed. Called by CleanupSystem at the end of each tick.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if w.DestroyNow(id) {
			n++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

// DestroyNow removes an entity immediately, bypassing the queue.
func (w *World) DestroyNow(id EntityID) bool {
	if !w.pool.Destroy(id) {
		return false
	}
	delete(w.names, id)
	delete(w.components, id)
	return true
}
