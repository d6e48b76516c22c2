package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadSceneTable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene_list.yaml", `
- id: Lobby
  bundle: bundles/lobby.yaml
  digest: " ABCDEF "
  mode: single
- id: Battle
  bundle: /abs/battle.yaml
  mode: additive
  activate_on_load: false
`)

	table, err := LoadSceneTable(path)
	if err != nil {
		t.Fatalf("LoadSceneTable: %v", err)
	}
	if table.Count() != 2 {
		t.Fatalf("Count = %d", table.Count())
	}
	lobby := table.Get("Lobby")
	if lobby == nil || lobby.Digest != "abcdef" || !lobby.Activate() {
		t.Fatalf("lobby = %+v", lobby)
	}
	if got := table.BundlePath(lobby); got != filepath.Join(dir, "bundles", "lobby.yaml") {
		t.Fatalf("BundlePath = %s", got)
	}
	battle := table.Get("Battle")
	if battle.Activate() || table.BundlePath(battle) != "/abs/battle.yaml" {
		t.Fatalf("battle = %+v", battle)
	}
	if ids := table.IDs(); ids[0] != "Battle" || ids[1] != "Lobby" {
		t.Fatalf("IDs = %v", ids)
	}
	if table.Get("Ghost") != nil {
		t.Fatalf("unknown id resolved")
	}
}

func TestLoadSceneTableRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"duplicate": "- {id: A, bundle: a.yaml}\n- {id: A, bundle: b.yaml}\n",
		"no id":     "- {bundle: a.yaml}\n",
		"no bundle": "- {id: A}\n",
		"bad mode":  "- {id: A, bundle: a.yaml, mode: stacked}\n",
		"not yaml":  "{{{",
	}
	for name, body := range cases {
		dir := t.TempDir()
		if _, err := LoadSceneTable(writeFile(t, dir, "scene_list.yaml", body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadSceneTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read scene list") {
		t.Fatalf("missing file err = %v", err)
	}
}
