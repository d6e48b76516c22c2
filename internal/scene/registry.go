package scene

import "sort"

// Registry maps scene ids to the handles of loaded scenes. A handle is present
// exactly while its load succeeded and no unload has succeeded since.
type Registry struct {
	scenes map[string]Instance
}

func NewRegistry() *Registry {
	return &Registry{scenes: make(map[string]Instance)}
}

// Set stores inst under sceneID, last write wins. It returns the handle it
// replaced, if any.
func (r *Registry) Set(sceneID string, inst Instance) (prev Instance, replaced bool) {
	prev, replaced = r.scenes[sceneID]
	r.scenes[sceneID] = inst
	return prev, replaced
}

func (r *Registry) Get(sceneID string) (Instance, bool) {
	inst, ok := r.scenes[sceneID]
	return inst, ok
}

// Remove deletes sceneID and reports whether it was present.
func (r *Registry) Remove(sceneID string) bool {
	if _, ok := r.scenes[sceneID]; !ok {
		return false
	}
	delete(r.scenes, sceneID)
	return true
}

func (r *Registry) Len() int { return len(r.scenes) }

// IDs returns the loaded scene ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.scenes))
	for id := range r.scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
