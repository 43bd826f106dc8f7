package fetch

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/types"
)

type stubProvider struct {
	blobs map[string][]byte
	err   error
}

func (s *stubProvider) Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) FetchAttachment(ctx context.Context, emailID string, ref models.AttachmentRef) (*models.AttachmentBlob, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.blobs[ref.Locator]
	if !ok {
		return nil, errors.New("no such attachment")
	}
	return &models.AttachmentBlob{Ref: ref, Data: data}, nil
}

func (s *stubProvider) RefreshCredential(ctx context.Context) (models.Credential, error) {
	return models.Credential{}, nil
}

func testConfig(maxSize int64) *types.Config {
	cfg := &types.Config{}
	cfg.Analysis.MaxSize = maxSize
	cfg.Analysis.UnitTimeout = 5
	return cfg
}

func TestCollectUnitsFiltersToPDFs(t *testing.T) {
	emails := []models.Email{
		{
			ID: "m1",
			Attachments: []models.AttachmentRef{
				{Filename: "invoice.pdf", MimeType: "application/pdf"},
				{Filename: "logo.png", MimeType: "image/png"},
			},
		},
		{ID: "m2"},
		{
			ID: "m3",
			Attachments: []models.AttachmentRef{
				{Filename: "receipt.PDF", MimeType: "application/octet-stream"},
			},
		},
	}

	units := CollectUnits(emails)
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[0].Email.ID != "m1" || units[0].Ref.Filename != "invoice.pdf" {
		t.Errorf("unit 0 = %s/%s", units[0].Email.ID, units[0].Ref.Filename)
	}
	// Extension match catches PDFs served with a generic MIME type.
	if units[1].Email.ID != "m3" || units[1].Ref.Filename != "receipt.PDF" {
		t.Errorf("unit 1 = %s/%s", units[1].Email.ID, units[1].Ref.Filename)
	}
}

func TestFetchRejectsAdvertisedOversize(t *testing.T) {
	stub := &stubProvider{}
	f := NewFetcher(stub, testConfig(1024), slog.Default())

	u := Unit{
		Email: models.Email{ID: "m1"},
		Ref:   models.AttachmentRef{Filename: "huge.pdf", Size: 4096, Locator: "a1"},
	}
	_, err := f.Fetch(context.Background(), u)
	if !errors.Is(err, ErrOversized) {
		t.Fatalf("got %v, want ErrOversized", err)
	}
}

func TestFetchRejectsDecodedOversize(t *testing.T) {
	stub := &stubProvider{blobs: map[string][]byte{"a1": make([]byte, 2048)}}
	f := NewFetcher(stub, testConfig(1024), slog.Default())

	u := Unit{
		Email: models.Email{ID: "m1"},
		Ref:   models.AttachmentRef{Filename: "lied.pdf", Size: 100, Locator: "a1"},
	}
	_, err := f.Fetch(context.Background(), u)
	if !errors.Is(err, ErrOversized) {
		t.Fatalf("got %v, want ErrOversized", err)
	}
}

func TestFetchReturnsBlob(t *testing.T) {
	stub := &stubProvider{blobs: map[string][]byte{"a1": []byte("%PDF-1.4")}}
	f := NewFetcher(stub, testConfig(1024), slog.Default())

	u := Unit{
		Email: models.Email{ID: "m1"},
		Ref:   models.AttachmentRef{Filename: "ok.pdf", Size: 8, Locator: "a1"},
	}
	blob, err := f.Fetch(context.Background(), u)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(blob.Data) != "%PDF-1.4" {
		t.Errorf("data = %q", blob.Data)
	}
}
