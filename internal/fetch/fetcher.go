// Package fetch downloads attachment units within the configured limits.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/provider"
	"github.com/altafino/invoice-analyzer/internal/types"
)

// ErrOversized marks an attachment above the configured byte ceiling.
var ErrOversized = errors.New("attachment exceeds size limit")

// Unit is one fetch+parse work item: a single PDF attachment together with
// the email it came from.
type Unit struct {
	Email models.Email
	Ref   models.AttachmentRef
}

// CollectUnits enumerates the PDF attachments of the given emails, in email
// order. Non-PDF attachments and emails without attachments contribute
// nothing; the length of the returned slice is the job's unit total.
func CollectUnits(emails []models.Email) []Unit {
	var units []Unit
	for _, email := range emails {
		for _, ref := range email.Attachments {
			if ref.IsPDF() {
				units = append(units, Unit{Email: email, Ref: ref})
			}
		}
	}
	return units
}

// Fetcher downloads single attachments through a provider, bounded by the
// configured byte ceiling and per-unit timeout.
type Fetcher struct {
	provider provider.Provider
	maxSize  int64
	timeout  time.Duration
	logger   *slog.Logger
}

func NewFetcher(p provider.Provider, cfg *types.Config, logger *slog.Logger) *Fetcher {
	timeout := time.Duration(cfg.Analysis.UnitTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxSize := cfg.Analysis.MaxSize
	if maxSize <= 0 {
		maxSize = 25 * 1024 * 1024
	}
	return &Fetcher{provider: p, maxSize: maxSize, timeout: timeout, logger: logger}
}

// UnitTimeout is the per-unit deadline shared by fetch and parse.
func (f *Fetcher) UnitTimeout() time.Duration { return f.timeout }

// Fetch downloads one attachment. The advertised size is checked before the
// download and the decoded size after, since providers routinely misreport
// the former.
func (f *Fetcher) Fetch(ctx context.Context, u Unit) (*models.AttachmentBlob, error) {
	if u.Ref.Size > f.maxSize {
		return nil, fmt.Errorf("%w: %s advertises %d bytes (limit %d)",
			ErrOversized, u.Ref.Filename, u.Ref.Size, f.maxSize)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()
	blob, err := f.provider.FetchAttachment(ctx, u.Email.ID, u.Ref)
	if err != nil {
		return nil, err
	}

	if int64(len(blob.Data)) > f.maxSize {
		return nil, fmt.Errorf("%w: %s decoded to %d bytes (limit %d)",
			ErrOversized, u.Ref.Filename, len(blob.Data), f.maxSize)
	}

	f.logger.Debug("fetched attachment",
		"email_id", u.Email.ID,
		"filename", u.Ref.Filename,
		"bytes", len(blob.Data),
		"elapsed", time.Since(started),
	)
	return blob, nil
}
