// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/budget-rollup/internal/model"
)

// BudgetItemFilter defines filtering options for budget item queries.
type BudgetItemFilter struct {
	Year           *int
	ParticularCode string
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Generic tree access used by the cascade.
	GetNode(ctx context.Context, ref model.NodeRef) (*model.Node, error)
	GetChildren(ctx context.Context, parent model.NodeRef) ([]model.ChildRecord, error)
	PatchNode(ctx context.Context, ref model.NodeRef, patch model.NodePatch) error

	// Particular operations
	CreateParticular(ctx context.Context, p *model.Particular) error
	GetParticular(ctx context.Context, code string) (*model.Particular, error)
	ListParticulars(ctx context.Context, includeInactive bool) ([]model.Particular, error)
	UpdateParticular(ctx context.Context, p *model.Particular) error
	DeleteParticular(ctx context.Context, code string) error
	CountParticularUsage(ctx context.Context, code string) (int, error)

	// Budget item operations
	CreateBudgetItem(ctx context.Context, item *model.BudgetItem) error
	GetBudgetItem(ctx context.Context, id string) (*model.BudgetItem, error)
	ListBudgetItems(ctx context.Context, filter BudgetItemFilter) ([]model.BudgetItem, error)
	UpdateBudgetItem(ctx context.Context, item *model.BudgetItem) error

	// Project operations
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, budgetItemID string, includeDeleted bool) ([]model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	SetProjectDeleted(ctx context.Context, id string, deleted bool, by string) error

	// Breakdown operations
	CreateBreakdown(ctx context.Context, breakdown *model.Breakdown) error
	GetBreakdown(ctx context.Context, id string) (*model.Breakdown, error)
	ListBreakdowns(ctx context.Context, projectID string, includeDeleted bool) ([]model.Breakdown, error)
	UpdateBreakdown(ctx context.Context, breakdown *model.Breakdown) error
	SetBreakdownDeleted(ctx context.Context, id string, deleted bool, by string) error

	// Activity log
	RecordActivity(ctx context.Context, event *model.ActivityEvent) error
	ListActivity(ctx context.Context, ref model.NodeRef, limit int) ([]model.ActivityEvent, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions suits optimistic-concurrency retries on a local store.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
	}
}
