package scene

import "reflect"

// As returns the first component of obj that implements capability C.
func As[C any](obj Object) (C, bool) {
	if obj != nil {
		for _, c := range obj.Components() {
			if v, ok := c.(C); ok {
				return v, true
			}
		}
	}
	var zero C
	return zero, false
}

// Resolve scans roots in order and returns the first object's capability C.
// When nothing matches it returns the zero value and a *ContextNotFoundError.
func Resolve[C any](roots []Object, sceneID string) (C, error) {
	for _, root := range roots {
		if c, ok := As[C](root); ok {
			return c, nil
		}
	}
	var zero C
	return zero, &ContextNotFoundError{SceneID: sceneID, Capability: capabilityName[C]()}
}

func capabilityName[C any]() string {
	return reflect.TypeOf((*C)(nil)).Elem().String()
}
