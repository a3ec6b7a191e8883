package docstore

import (
	"context"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"opsdesk/internal/platform/config"
)

// Connect opens a Firestore client for the configured project. Without a
// credentials file the client falls back to application default credentials.
func Connect(ctx context.Context, cfg config.Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.FirestoreCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirestoreCredentialsFile))
	} else {
		slog.Info("firestore using application default credentials", "project", cfg.FirestoreProjectID)
	}
	return firestore.NewClient(ctx, cfg.FirestoreProjectID, opts...)
}
