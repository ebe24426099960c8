package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewEmailRecord(t *testing.T) {
	creator := uuid.New()

	rec := NewEmailRecord("a@x.com", &creator)

	assert.Equal(t, "a@x.com", rec.Email)
	assert.NotNil(t, rec.CreatedBy)
	assert.Equal(t, creator, *rec.CreatedBy)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	assert.Zero(t, rec.ID)
}

func TestNewEmailRecord_NoCreator(t *testing.T) {
	rec := NewEmailRecord("system@x.com", nil)

	assert.Nil(t, rec.CreatedBy)
	assert.False(t, rec.OwnedBy(uuid.New()))
}

func TestEmailRecord_Touch(t *testing.T) {
	rec := NewEmailRecord("a@x.com", nil)
	before := rec.UpdatedAt

	later := before.Add(5 * time.Second)
	rec.Touch(later)

	assert.Equal(t, later, rec.UpdatedAt)
	assert.True(t, rec.UpdatedAt.After(rec.CreatedAt))
}

func TestEmailRecord_OwnedBy(t *testing.T) {
	creator := uuid.New()
	other := uuid.New()

	rec := NewEmailRecord("a@x.com", &creator)

	assert.True(t, rec.OwnedBy(creator))
	assert.False(t, rec.OwnedBy(other))
}

func TestEmailRecord_Clone(t *testing.T) {
	creator := uuid.New()
	first := "Ada"
	rec := NewEmailRecord("a@x.com", &creator)
	rec.FirstName = &first

	clone := rec.Clone()
	clone.Email = "b@x.com"
	*clone.FirstName = "Grace"
	*clone.CreatedBy = uuid.New()

	assert.Equal(t, "a@x.com", rec.Email)
	assert.Equal(t, "Ada", *rec.FirstName)
	assert.Equal(t, creator, *rec.CreatedBy)
}
