package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultCredentialExtractor converts standard claims into UserCredentials.
// Unknown or missing roles degrade to USER.
func DefaultCredentialExtractor(claims map[string]interface{}) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	id := firstStringClaim(claims, "uid", "user_id", "sub")
	if id == "" {
		return nil, errMissingSubject
	}

	role, ok := ParseRole(extractStringClaim(claims, "role"))
	if !ok {
		role = RoleUser
	}

	return &UserCredentials{
		ID:            id,
		Email:         extractStringClaim(claims, "email"),
		EmailVerified: extractBoolClaim(claims, "email_verified"),
		Name:          extractStringClaim(claims, "name"),
		Role:          role,
		TenantID:      extractTenantID(claims),
		PlatformAdmin: role == RoleAdmin && extractBoolClaim(claims, "platformAdmin"),
	}, nil
}

// PlatformTenantExtractor wraps DefaultCredentialExtractor so ADMINs of the
// given operator tenant are treated as platform administrators.
func PlatformTenantExtractor(platformTenant string) ExtractFunc {
	return func(claims map[string]interface{}) (*UserCredentials, error) {
		creds, err := DefaultCredentialExtractor(claims)
		if err != nil {
			return nil, err
		}
		if platformTenant != "" && creds.Role == RoleAdmin && creds.TenantID == platformTenant {
			creds.PlatformAdmin = true
		}
		return creds, nil
	}
}

func extractBoolClaim(claims map[string]interface{}, key string) bool {
	if v, ok := claims[key]; ok {
		if boolVal, valid := v.(bool); valid {
			return boolVal
		}
	}
	return false
}

func extractStringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid {
			return strVal
		}
	}
	return ""
}

func firstStringClaim(claims map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := extractStringClaim(claims, key); v != "" {
			return v
		}
	}
	return ""
}

// extractTenantID prefers the custom tenant_id claim and falls back to the
// Firebase multi-tenancy claim.
func extractTenantID(claims map[string]interface{}) string {
	if tenant := extractStringClaim(claims, "tenant_id"); tenant != "" {
		return tenant
	}

	firebaseClaim, ok := claims["firebase"].(map[string]interface{})
	if !ok {
		return ""
	}
	if tenant, ok := firebaseClaim["tenant"].(string); ok {
		return tenant
	}
	return ""
}

func parseUnsignedJWTClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	claims := make(map[string]interface{})
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	return claims, nil
}
