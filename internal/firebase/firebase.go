// Package firebase wires the Firebase app, Auth client and Firestore
// client from configuration, with emulator support for tests.
package firebase

import (
	"context"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/escaladev/escala/config"
)

// Service bundles the shared Firebase clients.
type Service struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

// New initializes the Firebase app and its Auth and Firestore clients.
func New(ctx context.Context, cfg config.FirebaseConfig) (*Service, error) {
	if cfg.UseEmulator {
		// The client libraries read these at construction time.
		os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.EmulatorAuthHost)
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.EmulatorFirestoreHost)
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, err
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}

	return &Service{
		App:       app,
		Auth:      authClient,
		Firestore: firestoreClient,
	}, nil
}

// Close releases the Firestore client.
func (s *Service) Close() error {
	return s.Firestore.Close()
}
