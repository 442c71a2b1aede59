package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/estatedesk/platform/go/auth"
	"github.com/zenGate-Global/estatedesk/platform/go/gcp"
)

// buildVerifier selects the bearer token verifier for cfg.AuthProvider.
func buildVerifier(ctx context.Context, cfg config, logger *zap.Logger) (platformauth.VerifyFunc, error) {
	switch cfg.AuthProvider {
	case "firebase":
		fbAuth, err := gcp.NewFirebaseAuth(ctx, gcp.FirebaseConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return platformauth.FirebaseTokenVerifier(fbAuth), nil
	case "", "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		return platformauth.UnsignedTokenVerifier(), nil
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", cfg.AuthProvider)
	}
}
