package spp

import "fmt"

// TypeSystem is the fully-resolved, immutable-after-load in-memory model
// produced by the XTCE loader or by programmatic construction. A
// polymorphic decoder is pure with respect to a TypeSystem and never
// mutates it, so one instance may be shared across concurrently running
// decoders without locking.
type TypeSystem struct {
	SpaceSystemName string
	ParameterTypes  map[string]*ParameterType
	Parameters      map[string]*Parameter
	Containers      *ContainerSet
	RootContainer   string
}

// Parameter looks up a parameter by name and resolves its type reference.
func (ts *TypeSystem) Parameter(name string) (*Parameter, *ParameterType, error) {
	p, ok := ts.Parameters[name]
	if !ok {
		return nil, nil, XtceParseErr{Element: name, Message: "dangling parameter reference"}
	}
	pt, ok := ts.ParameterTypes[p.TypeRef]
	if !ok {
		return nil, nil, XtceParseErr{Element: p.TypeRef, Message: "dangling parameter-type reference"}
	}
	return p, pt, nil
}

// Validate checks the load-time invariants that must hold before a
// TypeSystem is handed to a decoder: no dangling references, no duplicate
// parameter names (already enforced during construction), and an
// inheritance DAG free of cycles (already checked by NewContainerSet).
func (ts *TypeSystem) Validate() error {
	for name, p := range ts.Parameters {
		if _, ok := ts.ParameterTypes[p.TypeRef]; !ok {
			return XtceParseErr{Element: name, Message: fmt.Sprintf("parameter %q references unknown type %q", name, p.TypeRef)}
		}
	}
	for name, c := range ts.Containers.byName {
		for _, e := range c.Entries {
			switch e.Kind {
			case EntryParameter:
				if _, ok := ts.Parameters[e.ParameterRef]; !ok {
					return XtceParseErr{Element: name, Message: fmt.Sprintf("container %q references unknown parameter %q", name, e.ParameterRef)}
				}
			case EntryContainer:
				if _, ok := ts.Containers.byName[e.ContainerRef]; !ok {
					return XtceParseErr{Element: name, Message: fmt.Sprintf("container %q references unknown container %q", name, e.ContainerRef)}
				}
			}
		}
		if c.Base != nil {
			if _, ok := ts.Containers.byName[c.Base.ContainerRef]; !ok {
				return XtceParseErr{Element: name, Message: fmt.Sprintf("container %q has dangling base %q", name, c.Base.ContainerRef)}
			}
		}
	}
	if _, ok := ts.Containers.byName[ts.RootContainer]; !ok {
		return XtceParseErr{Element: ts.RootContainer, Message: "root container not found"}
	}
	return nil
}
