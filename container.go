package spp

import "fmt"

// EntryKind tags whether a container Entry refers to a Parameter or
// inlines another Sequence Container.
type EntryKind int

const (
	EntryParameter EntryKind = iota
	EntryContainer
)

// Entry is one ordered item in a Sequence Container's layout. Entry
// order defines bit layout; the loader and decoder never reorder entries.
type Entry struct {
	Kind         EntryKind
	ParameterRef string // EntryParameter
	ContainerRef string // EntryContainer
}

// BaseContainer links a container to its parent in the inheritance DAG,
// with an optional restriction criterion that must hold for this container
// to be eligible.
type BaseContainer struct {
	ContainerRef string
	Restriction  MatchCriterion // nil: unconditionally eligible once reached
}

// SequenceContainer is an ordered entry list, optionally inheriting from a
// base container. The inheritance graph is a DAG rooted at abstract
// containers; the loader rejects cycles at load time.
type SequenceContainer struct {
	Name     string
	Abstract bool
	Entries  []Entry
	Base     *BaseContainer // nil for a root container

	// children is populated by the loader for inheritance-tree walks; it is
	// the reverse edge of Base and is never set by hand.
	children []*SequenceContainer
}

// ContainerSet indexes containers by name and answers inheritance-tree
// queries for the polymorphic decoder. It is immutable after the
// loader finishes building it.
type ContainerSet struct {
	byName map[string]*SequenceContainer
	root   *SequenceContainer
}

// NewContainerSet builds a ContainerSet from containers, wiring each
// container's children list from its declared Base reference. The root is
// the container named rootName; the loader passes the first container
// declared without a Base (typically the CCSDS primary-header container).
func NewContainerSet(containers []*SequenceContainer, rootName string) (*ContainerSet, error) {
	cs := &ContainerSet{byName: make(map[string]*SequenceContainer, len(containers))}
	for _, c := range containers {
		if _, dup := cs.byName[c.Name]; dup {
			return nil, XtceParseErr{Element: c.Name, Message: "duplicate container name"}
		}
		cs.byName[c.Name] = c
	}
	for _, c := range containers {
		if c.Base == nil {
			continue
		}
		parent, ok := cs.byName[c.Base.ContainerRef]
		if !ok {
			return nil, XtceParseErr{Element: c.Name, Message: fmt.Sprintf("dangling base-container reference %q", c.Base.ContainerRef)}
		}
		parent.children = append(parent.children, c)
	}
	root, ok := cs.byName[rootName]
	if !ok {
		return nil, XtceParseErr{Element: rootName, Message: "root container not found"}
	}
	cs.root = root
	if err := detectCycles(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func detectCycles(cs *ContainerSet) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int, len(cs.byName))
	var visit func(c *SequenceContainer) error
	visit = func(c *SequenceContainer) error {
		state[c.Name] = gray
		for _, child := range c.children {
			switch state[child.Name] {
			case gray:
				return XtceParseErr{Element: child.Name, Message: "container inheritance cycle detected"}
			case white:
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		state[c.Name] = black
		return nil
	}
	for _, c := range cs.byName {
		if state[c.Name] == white {
			if err := visit(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get returns the container named name.
func (cs *ContainerSet) Get(name string) (*SequenceContainer, bool) {
	c, ok := cs.byName[name]
	return c, ok
}

// Root returns the container walks start from.
func (cs *ContainerSet) Root() *SequenceContainer { return cs.root }

// concreteCandidate pairs a concrete descendant with the chain of
// containers from the root down to it (root-to-leaf), each carrying its own
// restriction criterion; DescribeContainers exposes it for display.
type concreteCandidate struct {
	container *SequenceContainer
	chain     []*SequenceContainer // root ... container, each with its own Base.Restriction
}

// ContainerDescription pairs a concrete container with its root-to-leaf
// inheritance chain, for presenting a type system's container tree.
type ContainerDescription struct {
	Container *SequenceContainer
	Chain     []*SequenceContainer
}

// DescribeContainers enumerates every concrete container reachable from
// root for display purposes, in declaration order.
func DescribeContainers(root *SequenceContainer) []ContainerDescription {
	var out []ContainerDescription
	for _, c := range concreteDescendants(root) {
		out = append(out, ContainerDescription{Container: c.container, Chain: c.chain})
	}
	return out
}

func concreteDescendants(root *SequenceContainer) []concreteCandidate {
	var out []concreteCandidate
	var walk func(c *SequenceContainer, chain []*SequenceContainer)
	walk = func(c *SequenceContainer, chain []*SequenceContainer) {
		chain = append(chain, c)
		if !c.Abstract {
			cp := make([]*SequenceContainer, len(chain))
			copy(cp, chain)
			out = append(out, concreteCandidate{container: c, chain: cp})
		}
		for _, child := range c.children {
			walk(child, chain)
		}
	}
	walk(root, nil)
	return out
}
