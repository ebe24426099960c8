// Package registry implements the operations on the added_emails relation.
//
// Every operation follows the same fixed order: authorization (row policy)
// before mutation before timestamp stamping. Update and delete run inside a
// single transaction holding a row lock, so the policy decision, the write,
// and the timestamp reset are atomic: either all take effect or none do.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marvargas/email-registry/models"
	"github.com/marvargas/email-registry/policy"
	"github.com/marvargas/email-registry/repositories"
	"github.com/marvargas/email-registry/services"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateInput carries the caller-supplied fields for a new record.
type CreateInput struct {
	Email     string
	FirstName *string
	LastName  *string
}

// UpdateInput carries the caller-supplied changes for an existing record.
// Nil fields are left unchanged. UpdatedAt is accepted for wire compatibility
// but never honored: the service stamps its own value.
type UpdateInput struct {
	Email     *string
	FirstName *string
	LastName  *string

	// CreatedBy / ClearCreatedBy express an ownership reassignment attempt.
	// The row policy denies both for any caller; they exist so the denial is
	// enforced by evaluation rather than by silently dropping the field.
	CreatedBy      *uuid.UUID
	ClearCreatedBy bool

	UpdatedAt *time.Time
}

// Service orchestrates policy evaluation, storage and timestamp stamping for
// email records.
type Service struct {
	emails    repositories.EmailRepository
	txManager repositories.TransactionManager
	evaluator *policy.Evaluator
	logger    *zap.Logger

	// now is the clock used for timestamp stamping; replaced in tests.
	now func() time.Time
}

// NewService creates a new registry Service.
func NewService(
	emails repositories.EmailRepository,
	txManager repositories.TransactionManager,
	evaluator *policy.Evaluator,
	logger *zap.Logger,
) *Service {
	return &Service{
		emails:    emails,
		txManager: txManager,
		evaluator: evaluator,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns records ordered by creation time, newest first. Any
// authenticated principal sees all rows regardless of creator.
func (s *Service) List(ctx context.Context, p policy.Principal, limit, offset int) ([]*models.EmailRecord, error) {
	if err := s.authorize(policy.OperationSelect, p, nil, nil); err != nil {
		return nil, err
	}

	limit, offset = clampPage(limit, offset)

	records, err := s.emails.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list email records", err)
	}
	return records, nil
}

// ListMine returns records created by the calling principal.
func (s *Service) ListMine(ctx context.Context, p policy.Principal, limit, offset int) ([]*models.EmailRecord, error) {
	if err := s.authorize(policy.OperationSelect, p, nil, nil); err != nil {
		return nil, err
	}

	limit, offset = clampPage(limit, offset)

	records, err := s.emails.ListByCreator(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list email records", err)
	}
	return records, nil
}

// Get returns a single record by ID.
func (s *Service) Get(ctx context.Context, p policy.Principal, id int64) (*models.EmailRecord, error) {
	if err := s.authorize(policy.OperationSelect, p, nil, nil); err != nil {
		return nil, err
	}

	rec, err := s.emails.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return rec, nil
}

// Create inserts a new record. The caller's identity is recorded as the
// record's creator, making the caller the only principal able to modify or
// delete it later.
func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (*models.EmailRecord, error) {
	rec := models.NewEmailRecord(in.Email, nil)
	rec.FirstName = in.FirstName
	rec.LastName = in.LastName
	if p.Authenticated {
		creator := p.ID
		rec.CreatedBy = &creator
	}

	if err := s.authorize(policy.OperationInsert, p, nil, rec); err != nil {
		return nil, err
	}

	if err := s.emails.Create(ctx, rec); err != nil {
		return nil, mapStorageError(err)
	}

	s.logger.Info("email record created",
		zap.Int64("id", rec.ID),
		zap.String("email", rec.Email))

	return rec, nil
}

// Update applies the given changes to an existing record. The row policy is
// evaluated against both the stored row and the proposed row; only then is
// updated_at reset to the current time, overriding any caller-supplied value,
// and the row persisted. All of it happens in one transaction under a row
// lock.
func (s *Service) Update(ctx context.Context, p policy.Principal, id int64, in UpdateInput) (*models.EmailRecord, error) {
	var updated *models.EmailRecord

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		pre, err := s.emails.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return mapStorageError(err)
		}

		post := applyChanges(pre, in)

		if err := s.authorize(policy.OperationUpdate, p, pre, post); err != nil {
			return err
		}

		// Timestamp stamping runs after authorization and is never
		// skippable: whatever the caller put in UpdatedAt is discarded.
		now := s.now().UTC()
		if !now.After(pre.UpdatedAt) {
			now = pre.UpdatedAt.Add(time.Microsecond)
		}
		post.Touch(now)

		if err := s.emails.Update(txCtx, post); err != nil {
			return mapStorageError(err)
		}

		updated = post
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("email record updated", zap.Int64("id", updated.ID))
	return updated, nil
}

// Delete removes a record permanently. Only the recorded creator may delete.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id int64) error {
	err := s.txManager.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		pre, err := s.emails.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return mapStorageError(err)
		}

		if err := s.authorize(policy.OperationDelete, p, pre, nil); err != nil {
			return err
		}

		return mapStorageError(s.emails.Delete(txCtx, id))
	})
	if err != nil {
		return err
	}

	s.logger.Info("email record deleted", zap.Int64("id", id))
	return nil
}

// authorize runs the policy evaluator and converts a denial into the
// appropriate domain error: unauthorized for anonymous callers, forbidden for
// everything else.
func (s *Service) authorize(op policy.Operation, p policy.Principal, pre, post *models.EmailRecord) error {
	if !p.Authenticated {
		return services.NewDomainError(services.ErrorTypeUnauthorized, "authentication required", nil)
	}

	d := s.evaluator.Decide(op, p, pre, post)
	if !d.Allowed {
		return services.NewDomainError(services.ErrorTypeForbidden, d.Reason, nil)
	}
	return nil
}

// applyChanges builds the proposed post-row from the stored row and the
// caller's input. The result is a copy; the stored row is left intact for the
// pre-row policy check.
func applyChanges(pre *models.EmailRecord, in UpdateInput) *models.EmailRecord {
	post := pre.Clone()

	if in.Email != nil {
		post.Email = *in.Email
	}
	if in.FirstName != nil {
		post.FirstName = in.FirstName
	}
	if in.LastName != nil {
		post.LastName = in.LastName
	}
	if in.ClearCreatedBy {
		post.CreatedBy = nil
	} else if in.CreatedBy != nil {
		post.CreatedBy = in.CreatedBy
	}
	if in.UpdatedAt != nil {
		// Carried into the proposed row only so the stamper visibly
		// overrides it.
		post.UpdatedAt = *in.UpdatedAt
	}

	return post
}

func mapStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return services.NewDomainError(services.ErrorTypeNotFound, "email record not found", err)
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return services.NewDomainError(services.ErrorTypeConflict, "email already exists", err)
	default:
		return services.WrapInternal("storage operation failed", err)
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
