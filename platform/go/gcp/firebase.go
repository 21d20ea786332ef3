package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Config locates Google credentials. Empty fields fall back to Application
// Default Credentials and the project resolved from the environment.
type Config struct {
	CredentialsFile string `env:"FIREBASE_CONFIG"`
	ProjectID       string `env:"GCLOUD_PROJECT"`
}

func (c Config) clientOptions() []option.ClientOption {
	if c.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
}

// GetApp creates a Firebase App instance.
func GetApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	return firebase.NewApp(ctx, appCfg, cfg.clientOptions()...)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
// The same client verifies ID tokens and manages identities.
func InitFirebaseAuth(ctx context.Context, cfg Config) (*firebase.App, *firebaseauth.Client, error) {
	firebaseApp, err := GetApp(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	fbAuth, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase auth [%w]", err)
	}

	return firebaseApp, fbAuth, nil
}

// NewStorageClient builds a Cloud Storage client with the same credentials.
func NewStorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("error initializing storage client [%w]", err)
	}
	return client, nil
}
