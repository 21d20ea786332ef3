package service

import (
	"strings"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
)

const minPasswordLength = 6

// CreateUserInput is the admin provisioning payload.
type CreateUserInput struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	TenantID   string  `json:"tenant_id"`
	Department *string `json:"department,omitempty"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
}

// RegisterInput is the self-registration payload. The role is always USER.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
}

// normalize trims the input and validates it, returning the parsed role.
func (in *CreateUserInput) normalize() (platformauth.Role, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.TenantID = strings.TrimSpace(in.TenantID)

	fields := apperr.FieldErrors{}
	validateAccount(fields, in.Email, in.Password, in.Name, in.TenantID)

	role, ok := platformauth.ParseRole(in.Role)
	switch {
	case strings.TrimSpace(in.Role) == "":
		fields.Add("role", "role is required")
	case !ok:
		fields.Add("role", "role must be one of ADMIN, MANAGER, USER")
	}

	if err := fields.Err(); err != nil {
		return "", err
	}
	return role, nil
}

func (in *RegisterInput) normalize() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.TenantID = strings.TrimSpace(in.TenantID)

	fields := apperr.FieldErrors{}
	validateAccount(fields, in.Email, in.Password, in.Name, in.TenantID)
	return fields.Err()
}

func validateAccount(fields apperr.FieldErrors, email, password, name, tenantID string) {
	switch {
	case email == "":
		fields.Add("email", "email is required")
	case !strings.Contains(email, "@"):
		fields.Add("email", "email must contain '@'")
	}

	switch {
	case password == "":
		fields.Add("password", "password is required")
	case len(password) < minPasswordLength:
		fields.Add("password", "password must be at least 6 characters")
	}

	if name == "" {
		fields.Add("name", "name is required")
	}
	if tenantID == "" {
		fields.Add("tenant_id", "tenant_id is required")
	}
}
