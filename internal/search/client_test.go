package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
)

type fakeProvider struct {
	searchCalls int
	emails      []models.Email
	err         error
}

func (f *fakeProvider) Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
	f.searchCalls++
	return f.emails, f.err
}

func (f *fakeProvider) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	for i := range f.emails {
		if f.emails[i].ID == id {
			return &f.emails[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeProvider) FetchAttachment(ctx context.Context, emailID string, ref models.AttachmentRef) (*models.AttachmentBlob, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) RefreshCredential(ctx context.Context) (models.Credential, error) {
	return models.Credential{}, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSearchRejectsInvertedRangeBeforeProviderCall(t *testing.T) {
	fake := &fakeProvider{}
	c := NewClient(fake, slog.Default())

	_, err := c.Search(context.Background(), models.SearchQuery{
		DateRange: models.DateRange{Start: day(2024, 3, 31), End: day(2024, 3, 1)},
	})

	var invalid *InvalidQueryError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %T (%v), want *InvalidQueryError", err, err)
	}
	if fake.searchCalls != 0 {
		t.Errorf("provider was called %d times for an invalid query", fake.searchCalls)
	}
}

func TestSearchSingleDayRangeIsValid(t *testing.T) {
	fake := &fakeProvider{emails: []models.Email{{ID: "m1", Date: day(2024, 3, 15)}}}
	c := NewClient(fake, slog.Default())

	emails, err := c.Search(context.Background(), models.SearchQuery{
		DateRange: models.DateRange{Start: day(2024, 3, 15), End: day(2024, 3, 15)},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(emails) != 1 {
		t.Errorf("got %d emails, want 1", len(emails))
	}
}

func TestSearchRejectsUnknownFolder(t *testing.T) {
	c := NewClient(&fakeProvider{}, slog.Default())

	_, err := c.Search(context.Background(), models.SearchQuery{
		DateRange: models.DateRange{Start: day(2024, 3, 1), End: day(2024, 3, 31)},
		Folder:    models.Folder("SPAM"),
	})

	var invalid *InvalidQueryError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %T (%v), want *InvalidQueryError", err, err)
	}
}

func TestSearchDefaultsFolderToInbox(t *testing.T) {
	var seen models.Folder
	fake := &fakeProvider{}
	c := NewClient(providerFunc(func(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
		seen = q.Folder
		return fake.emails, nil
	}), slog.Default())

	_, err := c.Search(context.Background(), models.SearchQuery{
		DateRange: models.DateRange{Start: day(2024, 3, 1), End: day(2024, 3, 31)},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if seen != models.FolderInbox {
		t.Errorf("folder = %q, want %q", seen, models.FolderInbox)
	}
}

// providerFunc adapts a function to the provider interface for tests that
// only care about Search.
type providerFunc func(ctx context.Context, q models.SearchQuery) ([]models.Email, error)

func (f providerFunc) Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
	return f(ctx, q)
}

func (f providerFunc) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	return nil, errors.New("not implemented")
}

func (f providerFunc) FetchAttachment(ctx context.Context, emailID string, ref models.AttachmentRef) (*models.AttachmentBlob, error) {
	return nil, errors.New("not implemented")
}

func (f providerFunc) RefreshCredential(ctx context.Context) (models.Credential, error) {
	return models.Credential{}, nil
}
