// Package provider implements a uniform capability surface over
// heterogeneous mail back-ends. Every variant exposes the same four
// operations and keeps no local state between calls; credentials are passed
// in per request and never persisted here.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/types"
)

// Known provider tags. Selection is always by explicit tag, never by
// inspecting message id shapes.
const (
	TagGoogle    = "google"
	TagMicrosoft = "microsoft"
	TagIMAP      = "imap"
)

// Provider is the capability set every mail back-end implements.
type Provider interface {
	// Search returns normalized emails matching the query, newest first.
	Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error)

	// GetEmail fetches a single email with its attachment references.
	GetEmail(ctx context.Context, id string) (*models.Email, error)

	// FetchAttachment downloads and decodes one attachment of an email.
	FetchAttachment(ctx context.Context, emailID string, ref models.AttachmentRef) (*models.AttachmentBlob, error)

	// RefreshCredential exchanges the current credential for a fresh one.
	// Fails with *AuthError when the credential cannot be recovered.
	RefreshCredential(ctx context.Context) (models.Credential, error)
}

// New builds the provider variant selected by tag.
func New(ctx context.Context, tag string, cred models.Credential, cfg *types.Config, logger *slog.Logger) (Provider, error) {
	if cred.AccessToken == "" {
		return nil, &AuthError{Provider: tag, Reason: "empty credential"}
	}

	switch tag {
	case TagGoogle:
		return newGmailProvider(ctx, cred, cfg, logger)
	case TagMicrosoft:
		return newGraphProvider(cred, cfg, logger), nil
	case TagIMAP:
		return newIMAPProvider(cred, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", tag)
	}
}
