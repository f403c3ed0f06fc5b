package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinship/apperr"
)

type signup struct {
	Name      string   `json:"name" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=6"`
	Password2 string   `json:"password2" validate:"required,eqfield=Password"`
	Mentions  []string `json:"mentions" validate:"omitempty,dive,mongodb"`
}

var signupMessages = Messages{
	"name.required":      "Name is required.",
	"email.email":        "Please enter a valid email.",
	"password.min":       "Password must be at least 6 characters long.",
	"password2.eqfield":  "Passwords do not match.",
	"password2.required": "Confirm password is required.",
	"mentions":           "Mentions must be valid ids.",
}

func TestStructValid(t *testing.T) {
	err := Struct(signup{
		Name:      "Ada",
		Email:     "ada@example.com",
		Password:  "secret1",
		Password2: "secret1",
		Mentions:  []string{"65f1c0d2a1b2c3d4e5f60718"},
	}, signupMessages)
	assert.NoError(t, err)
}

func TestStructReportsEveryField(t *testing.T) {
	err := Struct(signup{
		Email:     "not-an-email",
		Password:  "123",
		Password2: "456",
		Mentions:  []string{"65f1c0d2a1b2c3d4e5f60718", "nope"},
	}, signupMessages)
	require.Error(t, err)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Equal(t, map[string]string{
		"name":      "Name is required.",
		"email":     "Please enter a valid email.",
		"password":  "Password must be at least 6 characters long.",
		"password2": "Passwords do not match.",
		"mentions":  "Mentions must be valid ids.",
	}, ae.Fields)
}

func TestStructFallbackMessage(t *testing.T) {
	type profile struct {
		Bio string `json:"bio" validate:"max=5"`
	}
	err := Struct(profile{Bio: "too long bio"}, nil)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "bio must not exceed 5 characters", ae.Fields["bio"])
}
