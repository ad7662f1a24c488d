package stores

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestStore creates a file-backed SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return store
}

// testDeployment builds a deployment record with the given id
func testDeployment(id string) *Deployment {
	now := time.Now().UTC()
	return &Deployment{
		ID:         id,
		Address:    "na+sm://4242-0",
		Protocol:   "na+sm",
		ConfigPath: "/tmp/bedrock-test.json",
		Config:     `{"margo":{"mercury":{"address":"na+sm"}}}`,
		PID:        4242,
		Status:     DeploymentStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected an error for an empty database path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deployments").Scan(&count); err != nil {
		t.Errorf("deployments table does not exist or is not accessible: %v", err)
	}

	// Migrate is idempotent
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}

// TestDeploymentCRUD tests deployment record operations
func TestDeploymentCRUD(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	d := testDeployment("0b2e7e4e-1111-4222-8333-444455556666")

	if err := store.SaveDeployment(ctx, d); err != nil {
		t.Fatalf("failed to save deployment: %v", err)
	}

	retrieved, err := store.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("failed to get deployment: %v", err)
	}

	if retrieved.ID != d.ID {
		t.Errorf("expected ID %s, got %s", d.ID, retrieved.ID)
	}
	if retrieved.Address != d.Address {
		t.Errorf("expected Address %s, got %s", d.Address, retrieved.Address)
	}
	if retrieved.Protocol != d.Protocol {
		t.Errorf("expected Protocol %s, got %s", d.Protocol, retrieved.Protocol)
	}
	if retrieved.Config != d.Config {
		t.Errorf("expected Config %s, got %s", d.Config, retrieved.Config)
	}
	if retrieved.PID != d.PID {
		t.Errorf("expected PID %d, got %d", d.PID, retrieved.PID)
	}
	if retrieved.Host != "" {
		t.Errorf("expected empty Host, got %s", retrieved.Host)
	}
	if retrieved.Status != DeploymentStatusRunning {
		t.Errorf("expected Status %s, got %s", DeploymentStatusRunning, retrieved.Status)
	}

	errMsg := "daemon exited unexpectedly"
	if err := store.UpdateDeploymentStatus(ctx, d.ID, DeploymentStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to update deployment status: %v", err)
	}

	updated, err := store.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("failed to get updated deployment: %v", err)
	}

	if updated.Status != DeploymentStatusFailed {
		t.Errorf("expected Status %s, got %s", DeploymentStatusFailed, updated.Status)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, updated.Error)
	}

	if err := store.DeleteDeployment(ctx, d.ID); err != nil {
		t.Fatalf("failed to delete deployment: %v", err)
	}

	if _, err := store.GetDeployment(ctx, d.ID); err == nil {
		t.Error("expected an error for a deleted deployment")
	}
}

func TestListDeployments(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	ids := []string{"dep-a", "dep-b", "dep-c"}
	for i, id := range ids {
		d := testDeployment(id)
		d.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		d.UpdatedAt = d.CreatedAt
		if err := store.SaveDeployment(ctx, d); err != nil {
			t.Fatalf("failed to save deployment %s: %v", id, err)
		}
	}

	deployments, err := store.ListDeployments(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list deployments: %v", err)
	}

	if len(deployments) != 3 {
		t.Fatalf("expected 3 deployments, got %d", len(deployments))
	}

	// Newest first
	if deployments[0].ID != "dep-c" || deployments[2].ID != "dep-a" {
		t.Errorf("expected order [dep-c dep-b dep-a], got [%s %s %s]",
			deployments[0].ID, deployments[1].ID, deployments[2].ID)
	}

	page, err := store.ListDeployments(ctx, 1, 1)
	if err != nil {
		t.Fatalf("failed to list deployments with pagination: %v", err)
	}

	if len(page) != 1 || page[0].ID != "dep-b" {
		t.Errorf("expected page [dep-b], got %d entries", len(page))
	}
}

func TestDeploymentNotFound(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()

	if _, err := store.GetDeployment(ctx, "missing"); err == nil {
		t.Error("expected an error for a missing deployment")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected a not found error, got %v", err)
	}

	if err := store.UpdateDeploymentStatus(ctx, "missing", DeploymentStatusStopped, nil); err == nil {
		t.Error("expected an error updating a missing deployment")
	}

	if err := store.DeleteDeployment(ctx, "missing"); err == nil {
		t.Error("expected an error deleting a missing deployment")
	}
}

func TestSaveDeployment_DuplicateID(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	d := testDeployment("dup-1")

	if err := store.SaveDeployment(ctx, d); err != nil {
		t.Fatalf("failed to save deployment: %v", err)
	}

	if err := store.SaveDeployment(ctx, d); err == nil {
		t.Error("expected an error saving a duplicate deployment id")
	}
}
