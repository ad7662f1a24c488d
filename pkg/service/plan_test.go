package service

import (
	"strings"
	"testing"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

func planTree(t *testing.T) *spec.ProcSpec {
	t.Helper()
	return spec.NewProcSpec("na+sm")
}

func addProvider(t *testing.T, tree *spec.ProcSpec, name, moduleType string, id uint16, deps map[string][]string) {
	t.Helper()
	pr := spec.NewProviderSpec(name, moduleType, id)
	for depName, exprs := range deps {
		if err := pr.Dependencies().Add(depName, exprs...); err != nil {
			t.Fatalf("Dependencies().Add(%s) error = %v", depName, err)
		}
	}
	if _, err := tree.AddProvider(pr); err != nil {
		t.Fatalf("AddProvider(%s) error = %v", name, err)
	}
}

func levelNames(plan *StartPlan) [][]string {
	names := make([][]string, len(plan.Levels))
	for i, level := range plan.Levels {
		for _, pr := range level {
			names[i] = append(names[i], pr.Name())
		}
	}
	return names
}

func TestBuildStartPlan_Levels(t *testing.T) {
	tree := planTree(t)
	addProvider(t, tree, "base", "module_a", 1, nil)
	addProvider(t, tree, "middle", "module_b", 1, map[string][]string{
		"storage": {"module_a:1"},
	})
	addProvider(t, tree, "top", "module_c", 1, map[string][]string{
		"storage": {"module_a:1"},
		"index":   {"module_b:1"},
	})

	plan, err := BuildStartPlan(tree)
	if err != nil {
		t.Fatalf("BuildStartPlan() error = %v", err)
	}

	if plan.Depth() != 3 {
		t.Fatalf("Depth() = %d, want 3", plan.Depth())
	}
	got := levelNames(plan)
	want := [][]string{{"base"}, {"middle"}, {"top"}}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("Level %d = %v, want %v", i, got[i], want[i])
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("Level %d = %v, want %v", i, got[i], want[i])
			}
		}
	}
	if len(plan.Edges) != 3 {
		t.Errorf("Edges count = %d, want 3", len(plan.Edges))
	}
}

func TestBuildStartPlan_ParallelLevel(t *testing.T) {
	tree := planTree(t)
	addProvider(t, tree, "zeta", "module_a", 1, nil)
	addProvider(t, tree, "alpha", "module_b", 1, nil)
	addProvider(t, tree, "consumer", "module_c", 1, map[string][]string{
		"a": {"module_a:1"},
		"b": {"module_b:1"},
	})

	plan, err := BuildStartPlan(tree)
	if err != nil {
		t.Fatalf("BuildStartPlan() error = %v", err)
	}

	got := levelNames(plan)
	if len(got) != 2 {
		t.Fatalf("Depth() = %d, want 2", len(got))
	}
	// First level is sorted by name for determinism
	if got[0][0] != "alpha" || got[0][1] != "zeta" {
		t.Errorf("Level 0 = %v, want [alpha zeta]", got[0])
	}
	if got[1][0] != "consumer" {
		t.Errorf("Level 1 = %v, want [consumer]", got[1])
	}
}

func TestBuildStartPlan_IgnoresUnresolvableDependencies(t *testing.T) {
	tree := planTree(t)
	addProvider(t, tree, "standalone", "module_a", 1, map[string][]string{
		"remote": {"module_x:9"},
		"client": {"module_b:client"},
		"member": {"peer@ssg://my_group/0"},
	})
	addProvider(t, tree, "other", "module_b", 1, nil)

	plan, err := BuildStartPlan(tree)
	if err != nil {
		t.Fatalf("BuildStartPlan() error = %v", err)
	}

	if plan.Depth() != 1 {
		t.Errorf("Depth() = %d, want 1 (no edges expected)", plan.Depth())
	}
	if len(plan.Edges) != 0 {
		t.Errorf("Edges = %v, want none", plan.Edges)
	}
}

func TestBuildStartPlan_Cycle(t *testing.T) {
	tree := planTree(t)

	first := spec.NewProviderSpec("first", "module_a", 1)
	if err := first.Dependencies().Add("other", "module_b:1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := tree.AddProvider(first); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}

	second := spec.NewProviderSpec("second", "module_b", 1)
	if err := second.Dependencies().Add("other", "module_a:1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := tree.AddProvider(second); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}

	_, err := BuildStartPlan(tree)
	if err == nil {
		t.Fatal("BuildStartPlan() should fail on a dependency cycle")
	}
	if !strings.Contains(err.Error(), "circular") {
		t.Errorf("Error = %v, want mention of circular dependency", err)
	}
}

func TestBuildStartPlan_SelfDependency(t *testing.T) {
	tree := planTree(t)
	addProvider(t, tree, "loner", "module_a", 1, map[string][]string{
		"self": {"module_a:1"},
	})

	_, err := BuildStartPlan(tree)
	if err == nil {
		t.Fatal("BuildStartPlan() should fail on a self dependency")
	}
}

func TestBuildStartPlan_Empty(t *testing.T) {
	tree := planTree(t)

	plan, err := BuildStartPlan(tree)
	if err != nil {
		t.Fatalf("BuildStartPlan() error = %v", err)
	}
	if plan.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", plan.Depth())
	}
}

func TestStartPlan_ToDOT(t *testing.T) {
	tree := planTree(t)
	addProvider(t, tree, "base", "module_a", 1, nil)
	addProvider(t, tree, "top", "module_b", 1, map[string][]string{
		"storage": {"module_a:1"},
	})

	plan, err := BuildStartPlan(tree)
	if err != nil {
		t.Fatalf("BuildStartPlan() error = %v", err)
	}

	dot := plan.ToDOT()
	for _, want := range []string{
		"digraph StartPlan",
		"cluster_level_0",
		"cluster_level_1",
		`"base" -> "top"`,
		`module_a:1`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() output missing %q:\n%s", want, dot)
		}
	}
}
