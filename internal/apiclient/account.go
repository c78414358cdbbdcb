package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
	"github.com/charlesng35/userdash/pkg/response"
	"github.com/charlesng35/userdash/pkg/validator"
)

const (
	endpointRegister       = "register"
	endpointForgotPassword = "forgot_password"
	endpointResetPassword  = "reset_password"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates an account. It does not sign in; the caller logs in with
// the same credentials afterwards.
func (c *Client) Register(ctx context.Context, name, email, password string) (*models.Profile, error) {
	req := registerRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := validator.ValidateStruct(req); err != nil {
		return nil, appErrors.NewValidationError(err.Error())
	}

	var payload response.Item[models.Profile]
	if err := c.do(ctx, endpointRegister, http.MethodPost, "/auth/register", nil, req, &payload); err != nil {
		return nil, err
	}
	if payload.Data.Email == "" {
		return nil, appErrors.NewServerError(http.StatusBadGateway, "register response carried no user")
	}
	return &payload.Data, nil
}

// ForgotPassword asks the API to mail a reset link and returns its
// acknowledgement. The API answers the same way whether or not the address
// is registered.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	req := forgotPasswordRequest{Email: strings.TrimSpace(email)}
	if err := validator.ValidateStruct(req); err != nil {
		return "", appErrors.NewValidationError(err.Error())
	}

	var out messageResponse
	if err := c.do(ctx, endpointForgotPassword, http.MethodPost, "/auth/forgot-password", nil, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ResetPassword sets a new password using a token from the reset email.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) (string, error) {
	req := resetPasswordRequest{
		Token:           strings.TrimSpace(token),
		Password:        password,
		ConfirmPassword: confirm,
	}
	if err := validator.ValidateStruct(req); err != nil {
		return "", appErrors.NewValidationError(err.Error())
	}

	var out messageResponse
	if err := c.do(ctx, endpointResetPassword, http.MethodPost, "/auth/reset-password", nil, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
