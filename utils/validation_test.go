package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct(t *testing.T) {
	type createRequest struct {
		Email     string  `validate:"required,email"`
		FirstName *string `validate:"omitempty,max=100"`
	}

	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(createRequest{Email: "alice@example.com"})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(createRequest{})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Email")
		assert.Contains(t, fields["Email"], "required")
	})

	t.Run("invalid email", func(t *testing.T) {
		err := ValidateStruct(createRequest{Email: "not-an-email"})
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Contains(t, fields["Email"], "valid email")
	})
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.NoError(t, ValidateEmail("first.last+tag@sub.example.co"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at-sign"))
	assert.Error(t, ValidateEmail("user@nodot"))
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID(uuid.New().String()))
	assert.Error(t, ValidateUUID("not-a-uuid"))
}

func TestGetValidationFields_NonValidationError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
	assert.False(t, IsValidationError(assert.AnError))
}
