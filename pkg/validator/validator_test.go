package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clinicInput struct {
	Name     string `json:"name" validate:"required"`
	Slug     string `json:"slug" validate:"omitempty,slug"`
	Referral string `json:"referral_code" validate:"omitempty,referralcode"`
}

func TestRegister_CustomTags(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	assert.NoError(t, v.Struct(clinicInput{Name: "Sunrise", Slug: "sunrise-physio", Referral: "AB23CD45"}))

	err := v.Struct(clinicInput{Slug: "Bad Slug", Referral: "x"})
	require.Error(t, err)

	fields, ok := Describe(err)
	require.True(t, ok)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	assert.Equal(t, "is required", got["name"])
	assert.Equal(t, messages["slug"], got["slug"])
	assert.Equal(t, messages["referralcode"], got["referral_code"])
}

func TestDescribe_NonValidationError(t *testing.T) {
	_, ok := Describe(errors.New("eof"))
	assert.False(t, ok)
}

func TestIsSlug(t *testing.T) {
	assert.True(t, IsSlug("a-b-3"))
	assert.False(t, IsSlug("-a"))
	assert.False(t, IsSlug("a--b"))
	assert.False(t, IsSlug("A"))
}
