package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SceneEntry describes one loadable, content-addressed scene bundle.
type SceneEntry struct {
	ID             string `yaml:"id"`
	Bundle         string `yaml:"bundle"`   // path, relative to the catalog file
	Digest         string `yaml:"digest"`   // hex BLAKE2b-256 of the bundle bytes
	Encoding       string `yaml:"encoding"` // WHATWG label; empty means utf-8
	Mode           string `yaml:"mode"`     // "single" or "additive"
	ActivateOnLoad *bool  `yaml:"activate_on_load"`
	Note           string `yaml:"note"`
}

// Activate reports the entry's activate_on_load flag, true when unset.
func (e *SceneEntry) Activate() bool {
	return e.ActivateOnLoad == nil || *e.ActivateOnLoad
}

// SceneTable provides lookup of scene bundles by scene id.
type SceneTable struct {
	scenes map[string]*SceneEntry
	root   string
}

// LoadSceneTable loads scene_list.yaml. Bundle paths are resolved against
// the directory holding the catalog.
func LoadSceneTable(path string) (*SceneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene list: %w", err)
	}
	var entries []SceneEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse scene list: %w", err)
	}
	return NewSceneTable(filepath.Dir(path), entries)
}

// NewSceneTable validates entries and indexes them by id.
func NewSceneTable(root string, entries []SceneEntry) (*SceneTable, error) {
	t := &SceneTable{
		scenes: make(map[string]*SceneEntry, len(entries)),
		root:   root,
	}
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("scene list entry %d: missing id", i)
		}
		if e.Bundle == "" {
			return nil, fmt.Errorf("scene %s: missing bundle", e.ID)
		}
		if _, dup := t.scenes[e.ID]; dup {
			return nil, fmt.Errorf("scene %s: duplicate id", e.ID)
		}
		switch strings.ToLower(e.Mode) {
		case "", "single", "additive":
		default:
			return nil, fmt.Errorf("scene %s: unknown mode %q", e.ID, e.Mode)
		}
		e.Digest = strings.ToLower(strings.TrimSpace(e.Digest))
		t.scenes[e.ID] = e
	}
	return t, nil
}

// Get returns the entry for a scene id, or nil if none.
func (t *SceneTable) Get(id string) *SceneEntry {
	return t.scenes[id]
}

// BundlePath returns the on-disk location of an entry's bundle.
func (t *SceneTable) BundlePath(e *SceneEntry) string {
	if filepath.IsAbs(e.Bundle) {
		return e.Bundle
	}
	return filepath.Join(t.root, e.Bundle)
}

// IDs returns all scene ids in sorted order.
func (t *SceneTable) IDs() []string {
	ids := make([]string, 0, len(t.scenes))
	for id := range t.scenes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the total number of scenes loaded.
func (t *SceneTable) Count() int {
	return len(t.scenes)
}
