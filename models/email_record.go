package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailRecord represents a row in the added_emails table.
//
// Email is the natural business key and is globally unique; the storage layer
// rejects duplicates. CreatedBy names the principal that created the record
// and, once set, is the only identity permitted to modify or delete it.
// UpdatedAt is never caller-controlled: it is reset by the system on every
// successful mutation.
type EmailRecord struct {
	ID        int64      `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	FirstName *string    `json:"first_name,omitempty" db:"first_name"`
	LastName  *string    `json:"last_name,omitempty" db:"last_name"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the EmailRecord model
func (EmailRecord) TableName() string {
	return "added_emails"
}

// NewEmailRecord creates a new EmailRecord with both timestamps set to now.
// ID is assigned by the storage engine on insert.
func NewEmailRecord(email string, createdBy *uuid.UUID) *EmailRecord {
	now := time.Now().UTC()
	return &EmailRecord{
		Email:     email,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch resets UpdatedAt. Called by the service on every successful update,
// overriding whatever the caller supplied for that field.
func (r *EmailRecord) Touch(now time.Time) {
	r.UpdatedAt = now
}

// Clone returns a shallow copy with the pointer fields duplicated, so policy
// checks can compare a proposed row against the stored one without aliasing.
func (r *EmailRecord) Clone() *EmailRecord {
	out := *r
	if r.FirstName != nil {
		v := *r.FirstName
		out.FirstName = &v
	}
	if r.LastName != nil {
		v := *r.LastName
		out.LastName = &v
	}
	if r.CreatedBy != nil {
		v := *r.CreatedBy
		out.CreatedBy = &v
	}
	return &out
}

// OwnedBy reports whether the record's creator matches the given identity.
// A record with no creator is owned by nobody.
func (r *EmailRecord) OwnedBy(id uuid.UUID) bool {
	return r.CreatedBy != nil && *r.CreatedBy == id
}
