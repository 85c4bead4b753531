package spp

import "testing"

func buildMinimalTypeSystem(t *testing.T) *TypeSystem {
	t.Helper()
	pt := &ParameterType{Name: "U8", Kind: ParamInteger, Encoding: IntegerEncoding{Size: 8, Sign: SignUnsigned}}
	p := &Parameter{Name: "FIELD", TypeRef: "U8"}
	root := &SequenceContainer{Name: "ROOT", Entries: []Entry{{Kind: EntryParameter, ParameterRef: "FIELD"}}}

	cs, err := NewContainerSet([]*SequenceContainer{root}, "ROOT")
	if err != nil {
		t.Fatalf("NewContainerSet() error = %v", err)
	}
	return &TypeSystem{
		SpaceSystemName: "test",
		ParameterTypes:  map[string]*ParameterType{"U8": pt},
		Parameters:      map[string]*Parameter{"FIELD": p},
		Containers:      cs,
		RootContainer:   "ROOT",
	}
}

func TestTypeSystem_Parameter(t *testing.T) {
	ts := buildMinimalTypeSystem(t)
	p, pt, err := ts.Parameter("FIELD")
	if err != nil {
		t.Fatalf("Parameter() error = %v", err)
	}
	if p.Name != "FIELD" || pt.Name != "U8" {
		t.Errorf("Parameter() = (%v, %v), want (FIELD, U8)", p.Name, pt.Name)
	}
}

func TestTypeSystem_Parameter_DanglingTypeRef(t *testing.T) {
	ts := buildMinimalTypeSystem(t)
	ts.Parameters["FIELD"].TypeRef = "MISSING"
	if _, _, err := ts.Parameter("FIELD"); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestTypeSystem_Parameter_UnknownName(t *testing.T) {
	ts := buildMinimalTypeSystem(t)
	if _, _, err := ts.Parameter("NOPE"); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestTypeSystem_Validate_OK(t *testing.T) {
	ts := buildMinimalTypeSystem(t)
	if err := ts.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestTypeSystem_Validate_DanglingParameterType(t *testing.T) {
	ts := buildMinimalTypeSystem(t)
	ts.Parameters["FIELD"].TypeRef = "MISSING"
	if err := ts.Validate(); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestTypeSystem_Validate_DanglingContainerParameterRef(t *testing.T) {
	ts := buildMinimalTypeSystem(t)
	root, _ := ts.Containers.Get("ROOT")
	root.Entries = append(root.Entries, Entry{Kind: EntryParameter, ParameterRef: "MISSING"})
	if err := ts.Validate(); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestTypeSystem_Validate_DanglingContainerRef(t *testing.T) {
	ts := buildMinimalTypeSystem(t)
	root, _ := ts.Containers.Get("ROOT")
	root.Entries = append(root.Entries, Entry{Kind: EntryContainer, ContainerRef: "MISSING"})
	if err := ts.Validate(); !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}
