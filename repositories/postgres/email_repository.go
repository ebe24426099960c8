package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/marvargas/email-registry/models"
	"github.com/marvargas/email-registry/repositories"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// EmailRepository implements the repositories.EmailRepository interface
type EmailRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEmailRepository creates a new email record repository
func NewEmailRepository(db *DB, logger *zap.Logger) repositories.EmailRepository {
	return &EmailRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new record. The storage engine assigns the ID, which is
// written back into rec.
func (r *EmailRepository) Create(ctx context.Context, rec *models.EmailRecord) error {
	query := `
		INSERT INTO added_emails (email, first_name, last_name, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		rec.Email,
		rec.FirstName,
		rec.LastName,
		rec.CreatedBy,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Scan(&rec.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", repositories.ErrDuplicateEmail, rec.Email)
		}
		return fmt.Errorf("failed to create email record: %w", err)
	}

	r.logger.Debug("email record created",
		zap.Int64("id", rec.ID),
		zap.String("email", rec.Email))
	return nil
}

// GetByID retrieves a record by ID
func (r *EmailRepository) GetByID(ctx context.Context, id int64) (*models.EmailRecord, error) {
	query := `
		SELECT id, email, first_name, last_name, created_by, created_at, updated_at
		FROM added_emails
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a record by ID with a row lock held until the
// surrounding transaction completes. Outside a transaction the lock is
// released immediately, so callers must run this under InTransaction.
func (r *EmailRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.EmailRecord, error) {
	query := `
		SELECT id, email, first_name, last_name, created_by, created_at, updated_at
		FROM added_emails
		WHERE id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a record by its email address
func (r *EmailRepository) GetByEmail(ctx context.Context, email string) (*models.EmailRecord, error) {
	query := `
		SELECT id, email, first_name, last_name, created_by, created_at, updated_at
		FROM added_emails
		WHERE email = $1
	`
	return r.getOne(ctx, query, email)
}

// List retrieves records ordered by creation time, newest first
func (r *EmailRepository) List(ctx context.Context, limit, offset int) ([]*models.EmailRecord, error) {
	query := `
		SELECT id, email, first_name, last_name, created_by, created_at, updated_at
		FROM added_emails
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.getMany(ctx, query, limit, offset)
}

// ListByCreator retrieves records created by the given principal
func (r *EmailRepository) ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]*models.EmailRecord, error) {
	query := `
		SELECT id, email, first_name, last_name, created_by, created_at, updated_at
		FROM added_emails
		WHERE created_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.getMany(ctx, query, createdBy, limit, offset)
}

// Update persists the record's current field values. updated_at carries the
// service-stamped value; the database trigger enforces the same invariant for
// writes that bypass the service.
func (r *EmailRepository) Update(ctx context.Context, rec *models.EmailRecord) error {
	query := `
		UPDATE added_emails
		SET email = $2,
		    first_name = $3,
		    last_name = $4,
		    created_by = $5,
		    updated_at = $6
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		rec.ID,
		rec.Email,
		rec.FirstName,
		rec.LastName,
		rec.CreatedBy,
		rec.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", repositories.ErrDuplicateEmail, rec.Email)
		}
		return fmt.Errorf("failed to update email record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", repositories.ErrNotFound, rec.ID)
	}

	r.logger.Debug("email record updated", zap.Int64("id", rec.ID))
	return nil
}

// Delete removes a record permanently
func (r *EmailRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM added_emails WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete email record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", repositories.ErrNotFound, id)
	}

	r.logger.Debug("email record deleted", zap.Int64("id", id))
	return nil
}

func (r *EmailRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.EmailRecord, error) {
	executor := GetExecutor(ctx, r.db)
	rec := &models.EmailRecord{}

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID,
		&rec.Email,
		&rec.FirstName,
		&rec.LastName,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", repositories.ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to get email record: %w", err)
	}

	return rec, nil
}

func (r *EmailRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]*models.EmailRecord, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query email records: %w", err)
	}
	defer rows.Close()

	var records []*models.EmailRecord
	for rows.Next() {
		rec := &models.EmailRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.Email,
			&rec.FirstName,
			&rec.LastName,
			&rec.CreatedBy,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating email record rows: %w", err)
	}

	return records, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
