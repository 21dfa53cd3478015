// Package storage defines the run history store.
package storage

import (
	"context"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
)

// RunStore records provisioning runs.
// Implementations must be safe for concurrent use.
type RunStore interface {
	// Close closes the storage connection.
	Close() error

	CreateRun(ctx context.Context, run *domain.RunRecord) error
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunRecord, error)
	UpdateRun(ctx context.Context, run *domain.RunRecord) error
}
