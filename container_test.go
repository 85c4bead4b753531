package spp

import "testing"

func TestNewContainerSet_WiresChildren(t *testing.T) {
	root := &SequenceContainer{Name: "ROOT", Abstract: true}
	child := &SequenceContainer{Name: "CHILD", Base: &BaseContainer{ContainerRef: "ROOT"}}

	cs, err := NewContainerSet([]*SequenceContainer{root, child}, "ROOT")
	if err != nil {
		t.Fatalf("NewContainerSet() error = %v", err)
	}
	if cs.Root().Name != "ROOT" {
		t.Errorf("Root() = %q, want ROOT", cs.Root().Name)
	}
	if len(root.children) != 1 || root.children[0].Name != "CHILD" {
		t.Errorf("root.children = %v, want [CHILD]", root.children)
	}
}

func TestNewContainerSet_DanglingBaseReference(t *testing.T) {
	child := &SequenceContainer{Name: "CHILD", Base: &BaseContainer{ContainerRef: "MISSING"}}
	if _, err := NewContainerSet([]*SequenceContainer{child}, "CHILD"); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestNewContainerSet_DuplicateName(t *testing.T) {
	a := &SequenceContainer{Name: "DUP"}
	b := &SequenceContainer{Name: "DUP"}
	if _, err := NewContainerSet([]*SequenceContainer{a, b}, "DUP"); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestNewContainerSet_MissingRoot(t *testing.T) {
	a := &SequenceContainer{Name: "A"}
	if _, err := NewContainerSet([]*SequenceContainer{a}, "NOPE"); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestNewContainerSet_RejectsCycle(t *testing.T) {
	a := &SequenceContainer{Name: "A", Base: &BaseContainer{ContainerRef: "B"}}
	b := &SequenceContainer{Name: "B", Base: &BaseContainer{ContainerRef: "A"}}
	if _, err := NewContainerSet([]*SequenceContainer{a, b}, "A"); !IsXtceParseErr(err) {
		t.Fatalf("expected a cycle to be rejected as an XtceParseErr, got %v", err)
	}
}

func TestDescribeContainers_EnumeratesConcreteDescendants(t *testing.T) {
	root := &SequenceContainer{Name: "ROOT", Abstract: true}
	mid := &SequenceContainer{Name: "MID", Abstract: true, Base: &BaseContainer{ContainerRef: "ROOT"}}
	leafA := &SequenceContainer{Name: "LEAF_A", Base: &BaseContainer{ContainerRef: "MID"}}
	leafB := &SequenceContainer{Name: "LEAF_B", Base: &BaseContainer{ContainerRef: "ROOT"}}

	cs, err := NewContainerSet([]*SequenceContainer{root, mid, leafA, leafB}, "ROOT")
	if err != nil {
		t.Fatalf("NewContainerSet() error = %v", err)
	}

	descs := DescribeContainers(cs.Root())
	if len(descs) != 2 {
		t.Fatalf("DescribeContainers() returned %d entries, want 2", len(descs))
	}
	names := map[string]int{}
	for _, d := range descs {
		names[d.Container.Name] = len(d.Chain)
	}
	if names["LEAF_A"] != 3 {
		t.Errorf("LEAF_A chain length = %d, want 3 (ROOT,MID,LEAF_A)", names["LEAF_A"])
	}
	if names["LEAF_B"] != 2 {
		t.Errorf("LEAF_B chain length = %d, want 2 (ROOT,LEAF_B)", names["LEAF_B"])
	}
}

func TestContainerSet_Get(t *testing.T) {
	root := &SequenceContainer{Name: "ROOT"}
	cs, err := NewContainerSet([]*SequenceContainer{root}, "ROOT")
	if err != nil {
		t.Fatalf("NewContainerSet() error = %v", err)
	}
	if _, ok := cs.Get("ROOT"); !ok {
		t.Error("Get(ROOT) ok = false, want true")
	}
	if _, ok := cs.Get("NOPE"); ok {
		t.Error("Get(NOPE) ok = true, want false")
	}
}
