// Package bundle is a file-backed implementation of the scene loader and
// scene graph. Bundles are YAML manifests addressed by the BLAKE2b-256 digest
// of their bytes; root objects are instantiated into an ecs.World.
package bundle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownScene   = errors.New("scene not in catalog")
	ErrDigestMismatch = errors.New("bundle digest mismatch")
	ErrReleased       = errors.New("operation released")
	ErrNotLoaded      = errors.New("instance not loaded by this loader")
)

// Manifest is the decoded content of a scene bundle.
type Manifest struct {
	Scene string     `yaml:"scene"`
	Roots []RootSpec `yaml:"roots"`
}

// RootSpec is one root object of the scene.
type RootSpec struct {
	Name       string          `yaml:"name"`
	Components []ComponentSpec `yaml:"components"`
}

// ComponentSpec names a component kind and its properties.
type ComponentSpec struct {
	Kind  string            `yaml:"kind"`
	Props map[string]string `yaml:"props"`
}

// Digest returns the hex BLAKE2b-256 digest used as a bundle's address.
func Digest(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Decode converts raw from the named text encoding to UTF-8 and parses the
// manifest. An empty encoding means UTF-8.
func Decode(raw []byte, encoding string) (*Manifest, error) {
	text, err := toUTF8(raw, encoding)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(text, &m); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	for i, r := range m.Roots {
		if r.Name == "" {
			return nil, fmt.Errorf("parse bundle: root %d has no name", i)
		}
		for j, c := range r.Components {
			if c.Kind == "" {
				return nil, fmt.Errorf("parse bundle: root %s component %d has no kind", r.Name, j)
			}
		}
	}
	return &m, nil
}

func toUTF8(raw []byte, label string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return raw, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("bundle encoding %q: %w", label, err)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode bundle from %s: %w", label, err)
	}
	return out, nil
}
