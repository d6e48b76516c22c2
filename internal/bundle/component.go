package bundle

// Factory builds a component from its manifest spec.
type Factory func(sceneID, root string, spec ComponentSpec) (any, error)

// Component is a component whose kind has no registered factory.
type Component struct {
	Kind  string
	Props map[string]string
}

// EntryPoint is the built-in "entry" component: the object a host resolves
// as the scene's context.
type EntryPoint struct {
	Scene string
	Root  string
	Title string
	Props map[string]string
}

func newEntryPoint(sceneID, root string, spec ComponentSpec) (any, error) {
	return &EntryPoint{
		Scene: sceneID,
		Root:  root,
		Title: spec.Props["title"],
		Props: spec.Props,
	}, nil
}
