// Package storage provides the data persistence layer for the budget tree.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/budget-rollup/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidNodeType   = errors.New("node type has no stored aggregates")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidParticular = errors.New("invalid particular")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRef ensures a node reference is usable.
func validateRef(ref model.NodeRef) error {
	if err := validateString(ref.ID, "node id"); err != nil {
		return err
	}
	return validateString(string(ref.Type), "node type")
}

// validateParticular validates a particular before it is written.
func validateParticular(p *model.Particular) error {
	if p == nil {
		return fmt.Errorf("%w: particular", ErrNilParameter)
	}
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidParticular)
	}
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("%w: missing full name", ErrInvalidParticular)
	}
	return nil
}

// validateBudgetItem validates a budget item before it is written.
func validateBudgetItem(item *model.BudgetItem) error {
	if item == nil {
		return fmt.Errorf("%w: budget item", ErrNilParameter)
	}
	if err := validateString(item.ID, "budget item id"); err != nil {
		return err
	}
	if err := validateString(item.ParticularCode, "particular code"); err != nil {
		return err
	}
	if item.TotalBudgetAllocated.IsNegative() {
		return fmt.Errorf("%w: allocated budget is negative", ErrInvalidAmount)
	}
	return nil
}

// validateProject validates a project before it is written.
func validateProject(p *model.Project) error {
	if p == nil {
		return fmt.Errorf("%w: project", ErrNilParameter)
	}
	if err := validateString(p.ID, "project id"); err != nil {
		return err
	}
	if err := validateString(p.BudgetItemID, "budget item id"); err != nil {
		return err
	}
	if p.TotalBudgetAllocated.IsNegative() {
		return fmt.Errorf("%w: allocated budget is negative", ErrInvalidAmount)
	}
	return nil
}

// validateBreakdown validates a breakdown before it is written.
func validateBreakdown(b *model.Breakdown) error {
	if b == nil {
		return fmt.Errorf("%w: breakdown", ErrNilParameter)
	}
	if err := validateString(b.ID, "breakdown id"); err != nil {
		return err
	}
	if err := validateString(b.ProjectID, "project id"); err != nil {
		return err
	}
	if b.AllocatedBudget.IsNegative() {
		return fmt.Errorf("%w: allocated budget is negative", ErrInvalidAmount)
	}
	return nil
}
