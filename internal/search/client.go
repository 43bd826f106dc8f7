// Package search validates mailbox queries and runs them against a provider.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/provider"
)

// InvalidQueryError reports a query rejected before any provider call.
type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s %s", e.Field, e.Reason)
}

// Client wraps a provider with query validation.
type Client struct {
	provider provider.Provider
	logger   *slog.Logger
}

func NewClient(p provider.Provider, logger *slog.Logger) *Client {
	return &Client{provider: p, logger: logger}
}

// Validate checks a query without touching the provider.
func Validate(q models.SearchQuery) error {
	if q.DateRange.Start.IsZero() {
		return &InvalidQueryError{Field: "start_date", Reason: "is required"}
	}
	if q.DateRange.End.IsZero() {
		return &InvalidQueryError{Field: "end_date", Reason: "is required"}
	}
	if q.DateRange.Start.After(q.DateRange.End) {
		return &InvalidQueryError{Field: "date_range", Reason: "start date is after end date"}
	}
	if q.Folder != "" && !models.ValidFolder(q.Folder) {
		return &InvalidQueryError{Field: "folder", Reason: fmt.Sprintf("unknown folder %q", q.Folder)}
	}
	return nil
}

// Search validates the query, then delegates to the provider. Results come
// back newest first; a single-day range (start == end) is valid and covers
// that whole calendar day.
func (c *Client) Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}
	if q.Folder == "" {
		q.Folder = models.FolderInbox
	}

	started := time.Now()
	emails, err := c.provider.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	c.logger.Info("mailbox search completed",
		"keywords", q.Keywords,
		"folder", q.Folder,
		"results", len(emails),
		"elapsed", time.Since(started),
	)
	return emails, nil
}
