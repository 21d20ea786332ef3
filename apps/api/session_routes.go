package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// sessionRoutes issues session cookies for the local identity provider.
type sessionRoutes struct {
	authenticator  identity.Authenticator
	sessions       *platformauth.Sessions
	cookieName     string
	secureCookie   bool
	platformTenant string
	logger         *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionUser struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	TenantID      string `json:"tenant_id"`
	PlatformAdmin bool   `json:"platform_admin"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      sessionUser `json:"user"`
}

func (s *sessionRoutes) Register(r chi.Router) {
	r.Post("/login", s.Login)
	r.Post("/logout", s.Logout)
}

func (s *sessionRoutes) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, s.logger, "login", err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respond.Error(w, r, s.logger, "login", apperr.NewValidation(map[string]string{"email": "email and password are required"}))
		return
	}

	id, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			err = fmt.Errorf("%w: %w", apperr.ErrAuthentication, err)
		}
		respond.Error(w, r, s.logger, "login", err)
		return
	}

	role, ok := platformauth.ParseRole(id.Claims.Role)
	if !ok {
		role = platformauth.RoleUser
	}
	creds := platformauth.UserCredentials{
		ID:            id.UID,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Name:          id.Claims.Name,
		Role:          role,
		TenantID:      id.Claims.TenantID,
		PlatformAdmin: role == platformauth.RoleAdmin && s.platformTenant != "" && id.Claims.TenantID == s.platformTenant,
	}

	token, expires, err := s.sessions.Issue(creds)
	if err != nil {
		respond.Error(w, r, s.logger, "login", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respond.Data(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expires,
		User: sessionUser{
			UID:           creds.ID,
			Email:         creds.Email,
			Name:          creds.Name,
			Role:          string(creds.Role),
			TenantID:      creds.TenantID,
			PlatformAdmin: creds.PlatformAdmin,
		},
	})
}

func (s *sessionRoutes) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respond.NoContent(w)
}
