package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: NewValidation(map[string]string{"email": "email is required"}), want: http.StatusBadRequest},
		{name: "authentication", err: ErrAuthentication, want: http.StatusUnauthorized},
		{name: "authorization wrapped", err: fmt.Errorf("tenant acme: %w", ErrAuthorization), want: http.StatusForbidden},
		{name: "not found wrapped", err: fmt.Errorf("tenant %w", ErrNotFound), want: http.StatusNotFound},
		{name: "conflict", err: ErrConflict, want: http.StatusConflict},
		{name: "quota", err: fmt.Errorf("tenant acme: %w", ErrQuotaExceeded), want: http.StatusConflict},
		{name: "provider", err: &ProviderError{Op: "create identity", Err: errors.New("EMAIL_EXISTS")}, want: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "EMAIL_EXISTS", PublicMessage(&ProviderError{Op: "create identity", Err: errors.New("EMAIL_EXISTS")}))
	require.Equal(t, "tenant not found", PublicMessage(fmt.Errorf("tenant %w", ErrNotFound)))
	require.Equal(t, "an unexpected error occurred", PublicMessage(errors.New("pg: connection reset")))
	require.Equal(t, "one or more fields are invalid", PublicMessage(NewValidation(map[string]string{"name": "required"})))
}

func TestFieldErrorsErr(t *testing.T) {
	t.Parallel()

	fe := FieldErrors{}
	require.NoError(t, fe.Err())

	fe.Add("password", "password is required")
	fe.Add("password", "password must be at least 6 characters")

	err := fe.Err()
	require.Error(t, err)
	require.Equal(t, []string{"password is required", "password must be at least 6 characters"}, Fields(err)["password"])
	require.Equal(t, "validation failed: password", err.Error())
}
