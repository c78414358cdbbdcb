package validator

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type dashboardSection struct {
	PageSize int `mapstructure:"page_size" validate:"gt=0"`
}

type configPayload struct {
	BaseURL   string           `mapstructure:"base_url" validate:"required,url"`
	Dashboard dashboardSection `mapstructure:"dashboard"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := loginPayload{Email: "ann@example.com", Password: "secret"}
	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(loginPayload{Email: "invalid"})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 2)

	fields := []string{vErrs[0].Field, vErrs[1].Field}
	require.ElementsMatch(t, []string{"email", "password"}, fields)
}

func TestValidateStructReportsNestedPaths(t *testing.T) {
	err := ValidateStruct(configPayload{BaseURL: "http://localhost", Dashboard: dashboardSection{PageSize: 0}})
	require.Error(t, err)

	vErrs := err.(ValidationErrors)
	require.Len(t, vErrs, 1)
	require.Equal(t, "dashboard.page_size", vErrs[0].Field)
	require.Equal(t, "gt", vErrs[0].Tag)
	require.Equal(t, "0", vErrs[0].Param)
	require.Equal(t, "dashboard.page_size failed on gt=0", vErrs.Error())
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("lowercase_only", func(fl validator.FieldLevel) bool {
		return strings.ToLower(fl.Field().String()) == fl.Field().String()
	}))

	type payload struct {
		Search string `json:"search" validate:"lowercase_only"`
	}

	require.NoError(t, ValidateStruct(payload{Search: "ann"}))
	require.Error(t, ValidateStruct(payload{Search: "Ann"}))
}

func TestEmptyValidationErrorsMessage(t *testing.T) {
	require.Equal(t, "validation failed", ValidationErrors{}.Error())
}
