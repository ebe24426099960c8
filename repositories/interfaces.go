package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/marvargas/email-registry/models"
)

// Storage sentinels. Drivers speak SQLSTATE; the postgres implementation
// normalizes those into these errors so callers can use errors.Is.
var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("repositories: record not found")

	// ErrDuplicateEmail is returned when an insert or update would violate
	// the unique constraint on email.
	ErrDuplicateEmail = errors.New("repositories: email already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// EmailRepository handles email record data operations. Implementations run
// against the transaction stored in ctx when one is present.
type EmailRepository interface {
	// Create inserts a new record and fills in the storage-assigned ID.
	Create(ctx context.Context, rec *models.EmailRecord) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id int64) (*models.EmailRecord, error)

	// GetByIDForUpdate retrieves a record by ID and locks the row for the
	// duration of the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.EmailRecord, error)

	// GetByEmail retrieves a record by its email address
	GetByEmail(ctx context.Context, email string) (*models.EmailRecord, error)

	// List retrieves records ordered by creation time, newest first
	List(ctx context.Context, limit, offset int) ([]*models.EmailRecord, error)

	// ListByCreator retrieves records created by the given principal
	ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]*models.EmailRecord, error)

	// Update persists the record's current field values
	Update(ctx context.Context, rec *models.EmailRecord) error

	// Delete removes a record permanently
	Delete(ctx context.Context, id int64) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Emails EmailRepository
}
