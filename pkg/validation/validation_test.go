package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listingForm struct {
	Name        string  `json:"name" validate:"required,listingname"`
	Price       float64 `json:"price" validate:"required,gt=0,lte=10000000"`
	Description string  `json:"description" validate:"required,nospam,min=20"`
}

func TestCustomTags(t *testing.T) {
	v := New()

	err := v.Struct(listingForm{Name: "Road bike", Price: 120, Description: "Lightly used, new tyres fitted"})
	assert.NoError(t, err)

	err = v.Struct(listingForm{Name: "1234", Price: 0, Description: "aaaaaaaaa"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := FieldErrors(verrs)
	assert.Contains(t, fields["name"], "must contain a letter")
	assert.Equal(t, "price is required", fields["price"])
	assert.Equal(t, "description looks like spam", fields["description"])
}

func TestSpamCheckedBeforeLength(t *testing.T) {
	err := New().Struct(listingForm{Name: "Lamp", Price: 10, Description: "zzzzz"})

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "nospam", verrs[0].Tag())
}

func TestRoleTag(t *testing.T) {
	type rolesForm struct {
		Roles []string `json:"roles" validate:"required,dive,role"`
	}
	v := New()

	assert.NoError(t, v.Struct(rolesForm{Roles: []string{"user", " Moderator "}}))

	err := v.Struct(rolesForm{Roles: []string{"user", "admin"}})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "role", verrs[0].Tag())
}
