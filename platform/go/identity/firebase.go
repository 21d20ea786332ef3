package identity

import (
	"context"
	"fmt"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// FirebaseProvider manages identities in Firebase Authentication.
type FirebaseProvider struct {
	client *firebaseauth.Client
}

// NewFirebaseProvider wraps an initialised Firebase Auth client.
func NewFirebaseProvider(client *firebaseauth.Client) *FirebaseProvider {
	if client == nil {
		panic("firebase auth client is required")
	}
	return &FirebaseProvider{client: client}
}

// Create registers the user and stamps the custom claims. If stamping fails the
// user is removed again so no identity without claims survives.
func (p *FirebaseProvider) Create(ctx context.Context, in NewIdentity) (Identity, error) {
	params := (&firebaseauth.UserToCreate{}).
		Email(in.Email).
		Password(in.Password).
		EmailVerified(in.EmailVerified)
	if in.DisplayName != "" {
		params = params.DisplayName(in.DisplayName)
	}

	record, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if firebaseauth.IsEmailAlreadyExists(err) {
			return Identity{}, ErrEmailExists
		}
		return Identity{}, fmt.Errorf("create firebase user: %w", err)
	}

	if err := p.client.SetCustomUserClaims(ctx, record.UID, in.Claims.Map()); err != nil {
		_ = p.client.DeleteUser(ctx, record.UID)
		return Identity{}, fmt.Errorf("set custom claims: %w", err)
	}

	return Identity{
		UID:           record.UID,
		Email:         record.Email,
		DisplayName:   record.DisplayName,
		EmailVerified: record.EmailVerified,
		Claims:        in.Claims,
	}, nil
}

// Delete removes the Firebase user.
func (p *FirebaseProvider) Delete(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		if firebaseauth.IsUserNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete firebase user: %w", err)
	}
	return nil
}
