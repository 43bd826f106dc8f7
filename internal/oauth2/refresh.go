// Package oauth2 holds the endpoint configuration and refresh helper used by
// the REST mail providers. The interactive login flow lives outside this
// service; only token refresh against a stored refresh token happens here.
package oauth2

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/altafino/invoice-analyzer/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// GoogleConfig returns the OAuth2 config for Gmail read access.
func GoogleConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
		},
		Endpoint: google.Endpoint,
	}
}

// MicrosoftConfig returns the OAuth2 config for Microsoft Graph mail access.
func MicrosoftConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes: []string{
			"https://graph.microsoft.com/Mail.Read",
			"offline_access",
		},
		Endpoint: microsoft.AzureADEndpoint("common"),
	}
}

// Refresh exchanges a credential's refresh token for a new access token.
func Refresh(ctx context.Context, cfg *oauth2.Config, cred models.Credential, logger *slog.Logger) (models.Credential, error) {
	if cred.RefreshToken == "" {
		return models.Credential{}, fmt.Errorf("no refresh token available")
	}
	if cfg.ClientID == "" {
		return models.Credential{}, fmt.Errorf("oauth client not configured")
	}

	source := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to refresh token: %w", err)
	}

	logger.Debug("refreshed OAuth2 token", "expires_at", token.Expiry)

	refreshed := models.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}
	return refreshed, nil
}
