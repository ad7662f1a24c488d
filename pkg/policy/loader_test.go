package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testLoader() *Loader {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewLoader(logger)
}

// fillerPolicy returns a small deny policy under the given package.
func fillerPolicy(pkg string) string {
	return fmt.Sprintf(`package bedrock.%s

import rego.v1

deny contains msg if {
	input.config.margo.handle_cache_size < 0
	msg := "negative handle cache size"
}
`, pkg)
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "pool-naming.rego")

	regoContent := `# Pools must carry descriptive names.
package bedrock.naming

import rego.v1

deny contains msg if {
	some pool in input.config.margo.argobots.pools
	pool.name == "pool"
	msg := "pool name is not descriptive"
}`

	if err := os.WriteFile(policyFile, []byte(regoContent), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "pool-naming" {
		t.Errorf("Expected name 'pool-naming', got '%s'", policy.Name)
	}

	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}

	if policy.Description != "Pools must carry descriptive names." {
		t.Errorf("Unexpected description: %q", policy.Description)
	}

	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}

	if policy.Severity != SeverityWarning {
		t.Errorf("Expected default severity %s, got %s", SeverityWarning, policy.Severity)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test-policy.json")

	policy := Policy{
		Name:        "handle-cache-floor",
		Description: "Handle cache must not be disabled",
		Rego:        fillerPolicy("cache"),
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"margo"},
	}

	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}

	if err := os.WriteFile(policyFile, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if loaded.Name != policy.Name {
		t.Errorf("Expected name '%s', got '%s'", policy.Name, loaded.Name)
	}

	if loaded.Description != policy.Description {
		t.Errorf("Expected description '%s', got '%s'", policy.Description, loaded.Description)
	}

	if loaded.Severity != policy.Severity {
		t.Errorf("Expected severity '%s', got '%s'", policy.Severity, loaded.Severity)
	}
}

func TestLoadFromFile_JSONDefaults(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "minimal.json")

	data := []byte(`{"name": "minimal", "rego": "package bedrock.minimal"}`)
	if err := os.WriteFile(policyFile, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if loaded.Severity != SeverityWarning {
		t.Errorf("Expected default severity %s, got %s", SeverityWarning, loaded.Severity)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be filled in")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()

	// Create multiple policy files
	policies := map[string]string{
		"policy1.rego": fillerPolicy("p1"),
		"policy2.rego": fillerPolicy("p2"),
		"policy3.rego": fillerPolicy("p3"),
	}

	for filename, content := range policies {
		path := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}

	// Also create a non-policy file that should be ignored
	if err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("# Test"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	if len(loaded) != len(policies) {
		t.Errorf("Expected %d policies, got %d", len(policies), len(loaded))
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	// Create policies in both directories
	if err := os.WriteFile(filepath.Join(tmpDir, "policy1.rego"), []byte(fillerPolicy("p1")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if err := os.WriteFile(filepath.Join(subDir, "policy2.rego"), []byte(fillerPolicy("p2")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("Expected 2 policies (including subdirectory), got %d", len(loaded))
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()

	// Create a directory with policies
	dir1 := filepath.Join(tmpDir, "dir1")
	if err := os.Mkdir(dir1, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir1, "policy1.rego"), []byte(fillerPolicy("p1")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	// Create a single policy file
	file1 := filepath.Join(tmpDir, "policy2.rego")
	if err := os.WriteFile(file1, []byte(fillerPolicy("p2")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	paths := []string{dir1, file1}
	loaded, err := loader.LoadFromPaths(context.Background(), paths)
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(loaded))
	}
}

func TestExtractDescription(t *testing.T) {
	loader := testLoader()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name: "single line comment",
			content: `# Providers must not share the progress pool
package bedrock.test`,
			expected: "Providers must not share the progress pool",
		},
		{
			name: "multi line comments",
			content: `# Providers must not share the progress pool
# with the Mercury progress loop
package bedrock.test`,
			expected: "Providers must not share the progress pool with the Mercury progress loop",
		},
		{
			name: "no comments",
			content: `package bedrock.test

import rego.v1`,
			expected: "",
		},
		{
			name: "comments with empty lines",
			content: `# First line
#
# Second line
package bedrock.test`,
			expected: "First line Second line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := loader.extractDescription(tt.content)
			if result != tt.expected {
				t.Errorf("Expected description '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestLoadFromFile_Cache(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "cached.rego")

	if err := os.WriteFile(policyFile, []byte(fillerPolicy("v1")), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	first, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	// Rewrite the file; a second load must return the cached policy.
	if err := os.WriteFile(policyFile, []byte(fillerPolicy("v2")), 0644); err != nil {
		t.Fatalf("Failed to rewrite test file: %v", err)
	}

	second, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if second.Rego != first.Rego {
		t.Error("Expected cached policy on second load")
	}

	loader.ClearCache()
	if len(loader.cache) != 0 {
		t.Errorf("Expected 0 cache entries after clear, got %d", len(loader.cache))
	}

	third, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if third.Rego == first.Rego {
		t.Error("Expected fresh policy after cache clear")
	}
}

func TestLoadFromFile_UnsupportedType(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(policyFile, []byte("not a policy"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for unsupported file type")
	}
}

func TestLoadFromFile_InvalidJSON(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test.json")
	if err := os.WriteFile(policyFile, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	loader := testLoader()

	if _, err := loader.loadFromPath(context.Background(), "/nonexistent/path"); err == nil {
		t.Error("Expected error for non-existent path")
	}
}
