package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Params captures the Firebase-compatible claims required to mint an unsigned JWT
// for local and CI environments. No environment variables are read so the builder
// stays deterministic for tooling.
type Params struct {
	ProjectID     string        // Firebase project id; used for aud and iss
	TenantID      string        // tenant_id custom claim (required unless PlatformAdmin)
	UserID        string        // user_id/sub/uid (required)
	Email         string        // email claim (required)
	Name          string        // display name
	Role          string        // ADMIN, MANAGER or USER; defaults to USER
	PlatformAdmin bool          // platformAdmin custom claim
	EmailVerified bool          // email_verified claim
	ExpiresIn     time.Duration // relative expiry; default 1h if zero
}

// BuildUnsignedFirebaseToken returns a JWT string with alg "none" and no signature.
// The payload mirrors the Firebase ID token shape plus the custom claims the
// API reads, so it flows through the auth middleware when AUTH_PROVIDER=dev.
func BuildUnsignedFirebaseToken(p Params, now time.Time) (string, error) {
	if strings.TrimSpace(p.ProjectID) == "" {
		return "", errors.New("projectID is required")
	}
	if strings.TrimSpace(p.TenantID) == "" && !p.PlatformAdmin {
		return "", errors.New("tenantID is required")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("userID is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return "", errors.New("email is required")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	role := strings.ToUpper(strings.TrimSpace(p.Role))
	switch {
	case role == "" && p.PlatformAdmin:
		role = "ADMIN"
	case role == "":
		role = "USER"
	}

	payload := map[string]interface{}{
		"iss":            fmt.Sprintf("https://securetoken.google.com/%s", p.ProjectID),
		"aud":            p.ProjectID,
		"auth_time":      now.Unix(),
		"user_id":        p.UserID,
		"sub":            p.UserID,
		"iat":            now.Unix(),
		"exp":            now.Add(expiresIn).Unix(),
		"email":          p.Email,
		"email_verified": p.EmailVerified,
		"name":           p.Name,
		"role":           role,
		"tenant_id":      p.TenantID,
		"firebase": map[string]interface{}{
			"identities":       map[string]interface{}{"email": []string{p.Email}},
			"sign_in_provider": "password",
		},
	}
	if p.PlatformAdmin {
		payload["platformAdmin"] = true
	}

	headerSegment, err := encodeSegment(map[string]interface{}{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}

	payloadSegment, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%s", headerSegment, payloadSegment), nil
}

func encodeSegment(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
