package stores

import (
	"context"
	"time"
)

// DeploymentStatus represents the lifecycle state of a recorded deployment
type DeploymentStatus string

const (
	DeploymentStatusStarting DeploymentStatus = "starting"
	DeploymentStatusRunning  DeploymentStatus = "running"
	DeploymentStatusFailed   DeploymentStatus = "failed"
	DeploymentStatusStopped  DeploymentStatus = "stopped"
)

// Deployment records a single daemon deployment: where it was started,
// the exact descriptor it was started with, and how it ended up.
type Deployment struct {
	ID         string           `json:"id"`
	Address    string           `json:"address"`
	Protocol   string           `json:"protocol"`
	Host       string           `json:"host"` // empty for local deployments
	ConfigPath string           `json:"config_path"`
	Config     string           `json:"config"` // canonical JSON document
	PID        int              `json:"pid"`
	Status     DeploymentStatus `json:"status"`
	Error      *string          `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Store defines the interface for the deployment history layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Deployment operations
	SaveDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, id string) (*Deployment, error)
	UpdateDeploymentStatus(ctx context.Context, id string, status DeploymentStatus, err *string) error
	ListDeployments(ctx context.Context, limit, offset int) ([]*Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
