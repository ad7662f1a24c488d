package config

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

func TestQueryEvaluator_ResultGlobal(t *testing.T) {
	qe := NewQueryEvaluator(0)
	tree := spec.NewProcSpec("ofi+tcp://10.0.0.1:1234")

	result, err := qe.QueryTree(context.Background(), tree, `result = config["margo"]["mercury"]["address"]`)
	if err != nil {
		t.Fatalf("QueryTree() error = %v", err)
	}
	if string(result) != `"ofi+tcp://10.0.0.1:1234"` {
		t.Errorf("Result = %s", result)
	}
}

func TestQueryEvaluator_GlobalsFallback(t *testing.T) {
	qe := NewQueryEvaluator(0)
	tree := spec.NewProcSpec("na+sm")

	script := `
pools = [p["name"] for p in config["margo"]["argobots"]["pools"]]
_internal = "hidden"
`
	result, err := qe.QueryTree(context.Background(), tree, script)
	if err != nil {
		t.Fatalf("QueryTree() error = %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := out["_internal"]; ok {
		t.Error("Underscore globals should not be exported")
	}
	pools, ok := out["pools"].([]interface{})
	if !ok || len(pools) != 1 || pools[0] != "__primary__" {
		t.Errorf("pools = %v", out["pools"])
	}
}

func TestQueryEvaluator_Computation(t *testing.T) {
	qe := NewQueryEvaluator(0)
	tree := spec.NewProcSpec("na+sm")
	if _, err := tree.AddProvider(spec.NewProviderSpec("a", "module_a", 1)); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}
	if _, err := tree.AddProvider(spec.NewProviderSpec("b", "module_a", 2)); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}

	script := `
ids = [p["provider_id"] for p in config["providers"] if p["type"] == "module_a"]
result = {"count": len(ids), "max": max(ids)}
`
	result, err := qe.QueryTree(context.Background(), tree, script)
	if err != nil {
		t.Fatalf("QueryTree() error = %v", err)
	}

	var out struct {
		Count int `json:"count"`
		Max   int `json:"max"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.Count != 2 || out.Max != 2 {
		t.Errorf("Result = %s", result)
	}
}

func TestQueryEvaluator_ScriptError(t *testing.T) {
	qe := NewQueryEvaluator(0)
	tree := spec.NewProcSpec("na+sm")

	_, err := qe.QueryTree(context.Background(), tree, `result = config["nope"]`)
	if err == nil {
		t.Fatal("QueryTree() should surface script failures")
	}
	if !strings.Contains(err.Error(), "query script failed") {
		t.Errorf("Error = %v", err)
	}
}

func TestQueryEvaluator_Timeout(t *testing.T) {
	qe := NewQueryEvaluator(50 * time.Millisecond)
	tree := spec.NewProcSpec("na+sm")

	script := `
x = 0
for i in range(1000000):
    for j in range(1000000):
        x = x + 1
`
	_, err := qe.QueryTree(context.Background(), tree, script)
	if err == nil {
		t.Fatal("QueryTree() should time out")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Error = %v", err)
	}
}

func TestQueryEvaluator_RawDocument(t *testing.T) {
	qe := NewQueryEvaluator(0)

	doc := json.RawMessage(`{"libraries":{"module_a":"/usr/lib/a.so","module_b":"/usr/lib/b.so"}}`)
	result, err := qe.Query(context.Background(), doc, `result = sorted(config["libraries"].keys())`)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if string(result) != `["module_a","module_b"]` {
		t.Errorf("Result = %s", result)
	}
}
