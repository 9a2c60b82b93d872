package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/service"
)

// CreateParticular adds a user-defined particular. Codes are stored upper
// case.
func (s *Service) CreateParticular(ctx context.Context, in ParticularInput) (*model.Particular, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if strings.ContainsAny(in.Code, " \t") {
		return nil, fmt.Errorf("%w: code %q contains whitespace", common.ErrInvalidInput, in.Code)
	}

	p := &model.Particular{
		Code:      in.Code,
		FullName:  in.FullName,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateParticular(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetParticular returns a particular by code.
func (s *Service) GetParticular(ctx context.Context, code string) (*model.Particular, error) {
	return s.store.GetParticular(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// ListParticulars returns particulars ordered by code.
func (s *Service) ListParticulars(ctx context.Context, includeInactive bool) ([]model.Particular, error) {
	return s.store.ListParticulars(ctx, includeInactive)
}

// UpdateParticular edits a particular's name or active flag. The code is
// immutable.
func (s *Service) UpdateParticular(ctx context.Context, code string, in ParticularUpdate) (*model.Particular, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	var updated *model.Particular
	err := s.inTx(ctx, func(tx service.Transaction) error {
		p, err := tx.GetParticular(ctx, strings.ToUpper(strings.TrimSpace(code)))
		if err != nil {
			return err
		}
		if in.FullName != nil {
			p.FullName = strings.TrimSpace(*in.FullName)
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		if err := tx.UpdateParticular(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteParticular removes a particular that no budget item uses. System
// defaults can only be deactivated.
func (s *Service) DeleteParticular(ctx context.Context, code string) error {
	return s.inTx(ctx, func(tx service.Transaction) error {
		return tx.DeleteParticular(ctx, strings.ToUpper(strings.TrimSpace(code)))
	})
}
