package spec

import "testing"

func TestParseDependency_ProviderRef(t *testing.T) {
	d, err := ParseDependency("module_a:42")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	ref, ok := d.Ref().(ProviderRef)
	if !ok {
		t.Fatalf("Expected ProviderRef, got %T", d.Ref())
	}
	if ref.Type != "module_a" || ref.ProviderID != 42 {
		t.Errorf("Expected module_a:42, got %s:%d", ref.Type, ref.ProviderID)
	}
	if d.String() != "module_a:42" {
		t.Errorf("Expected original expression, got %q", d.String())
	}
}

func TestParseDependency_ClientRef(t *testing.T) {
	d, err := ParseDependency("module_a:client")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	ref, ok := d.Ref().(ClientRef)
	if !ok {
		t.Fatalf("Expected ClientRef, got %T", d.Ref())
	}
	if ref.Type != "module_a" {
		t.Errorf("Expected type module_a, got %q", ref.Type)
	}
}

func TestParseDependency_GroupMemberRef(t *testing.T) {
	d, err := ParseDependency("ProviderA@ssg://my_group/0")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	ref, ok := d.Ref().(GroupMemberRef)
	if !ok {
		t.Fatalf("Expected GroupMemberRef, got %T", d.Ref())
	}
	if ref.Name != "ProviderA" || ref.Group != "my_group" || ref.Rank != 0 {
		t.Errorf("Unexpected components: %+v", ref)
	}
}

func TestParseDependency_LeadingZeros(t *testing.T) {
	d, err := ParseDependency("mod:007")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	ref := d.Ref().(ProviderRef)
	if ref.ProviderID != 7 {
		t.Errorf("Expected provider id 7, got %d", ref.ProviderID)
	}
	if d.String() != "mod:007" {
		t.Errorf("Expected literal text preserved, got %q", d.String())
	}
}

func TestParseDependency_Invalid(t *testing.T) {
	exprs := []string{
		"garbage",
		"",
		"mod:",
		":5",
		"mod:5:6",
		"mod:-1",
		"mod:client7",
		"mod:70000",
		"9mod:1",
		"x@ssg://grp",
		"x@ssg://grp/z",
		"x@ssg:///1",
		"@ssg://grp/1",
		"x@http://grp/1",
	}
	for _, expr := range exprs {
		if _, err := ParseDependency(expr); !IsInvalidDependencyExpression(err) {
			t.Errorf("Expected invalid-expression error for %q, got: %v", expr, err)
		}
	}
}

func TestDependencyMap_Add(t *testing.T) {
	var m DependencyMap

	if err := m.Add("db", "module_a:1"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := m.Add("db", "module_a:2", "module_a:3"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	ds := m.Get("db")
	if len(ds) != 3 {
		t.Fatalf("Expected 3 expressions, got %d", len(ds))
	}
	if ds[0].String() != "module_a:1" || ds[2].String() != "module_a:3" {
		t.Errorf("Expressions out of order: %v", ds)
	}
}

func TestDependencyMap_Add_Invalid(t *testing.T) {
	var m DependencyMap

	if err := m.Add("db"); !IsInvalidValue(err) {
		t.Errorf("Expected invalid-value error for no expressions, got: %v", err)
	}
	if err := m.Add("", "module_a:1"); !IsInvalidValue(err) {
		t.Errorf("Expected invalid-value error for empty name, got: %v", err)
	}

	err := m.Add("db", "module_a:1", "garbage")
	if !IsInvalidDependencyExpression(err) {
		t.Fatalf("Expected invalid-expression error, got: %v", err)
	}
	if m.Has("db") {
		t.Error("Failed add should leave the map unchanged")
	}
}

func TestDependencyMap_Names_Sorted(t *testing.T) {
	var m DependencyMap

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := m.Add(name, "module_a:client"); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}
	names := m.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("Expected sorted names %v, got %v", want, names)
		}
	}
}
