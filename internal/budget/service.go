// Package budget implements the mutation handlers of the budget tree. Every
// write to a node runs in one transaction together with the recompute of
// the aggregates above it.
package budget

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Config holds configuration options for the service.
type Config struct {
	Retry service.RetryOptions
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Retry: service.DefaultRetryOptions(),
	}
}

// Service is the entry point for every budget tree read and write.
type Service struct {
	store    service.Storage
	updater  *cascade.Updater
	validate *validator.Validate
	retry    service.RetryOptions
}

// New creates a service with the default configuration.
func New(store service.Storage) *Service {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a service with custom configuration.
func NewWithConfig(store service.Storage, config Config) *Service {
	return &Service{
		store:    store,
		updater:  cascade.NewWithConfig(store, cascade.Config{Retry: config.Retry}),
		validate: newValidator(),
		retry:    config.Retry,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return v
}

// decimalValue lets numeric tags such as gte=0 apply to decimal fields.
func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			if fe.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
			}
		}
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
}

// inTx runs fn and the cascade it triggers in one retried transaction.
func (s *Service) inTx(ctx context.Context, fn func(tx service.Transaction) error) error {
	return common.RunInTx(ctx, s.store, s.retry, fn)
}

// record appends a direct-edit event to the activity log.
func record(ctx context.Context, tx service.Transaction, ref model.NodeRef, action model.ActivityAction, previous, next map[string]any, reason string) error {
	changed := changedFields(previous, next)
	if action == model.ActionUpdate && len(changed) == 0 {
		return nil
	}

	event := &model.ActivityEvent{
		NodeType:       ref.Type,
		NodeID:         ref.ID,
		Action:         action,
		PreviousValues: previous,
		NewValues:      next,
		ChangedFields:  changed,
		Reason:         reason,
	}
	if err := tx.RecordActivity(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s of %s: %w", action, ref, err)
	}
	return nil
}

// changedFields lists the keys of next whose values differ from previous,
// sorted by key.
func changedFields(previous, next map[string]any) []string {
	var changed []string
	for _, key := range slices.Sorted(maps.Keys(next)) {
		if fmt.Sprint(previous[key]) != fmt.Sprint(next[key]) {
			changed = append(changed, key)
		}
	}
	return changed
}

// guardDerived refuses direct edits to figures the cascade owns.
func guardDerived(auto bool, utilized, obligated *decimal.Decimal) error {
	if !auto {
		return nil
	}
	if utilized != nil {
		return fmt.Errorf("utilized: %w", common.ErrDerivedField)
	}
	if obligated != nil {
		return fmt.Errorf("obligated: %w", common.ErrDerivedField)
	}
	return nil
}

// Recompute re-derives ref's aggregates and those of every ancestor.
func (s *Service) Recompute(ctx context.Context, ref model.NodeRef) ([]cascade.LevelResult, error) {
	return s.updater.Recompute(ctx, ref)
}

// SetMode switches a budget item or project between auto and manual.
func (s *Service) SetMode(ctx context.Context, ref model.NodeRef, target rollup.Mode, reason string) (*cascade.ToggleResult, error) {
	return s.updater.SetMode(ctx, ref, target, reason)
}

// BulkSetMode switches many nodes, one transaction each. onOutcome may be
// nil.
func (s *Service) BulkSetMode(ctx context.Context, refs []model.NodeRef, target rollup.Mode, reason string, onOutcome func(int, cascade.ToggleOutcome)) []cascade.ToggleOutcome {
	bulk := cascade.NewBulkToggler(s.updater)
	bulk.OnOutcome = onOutcome
	return bulk.Toggle(ctx, refs, target, reason)
}

// Activity returns the most recent history of ref, newest first.
func (s *Service) Activity(ctx context.Context, ref model.NodeRef, limit int) ([]model.ActivityEvent, error) {
	return s.store.ListActivity(ctx, ref, limit)
}
