// Package extract turns PDF invoice attachments into typed records.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/ledongthuc/pdf"
)

// Reason codes carried by extraction failures.
const (
	ReasonUnreadableStream = "unreadable-stream"
	ReasonNoAnchorsFound   = "no-anchors-found"
	ReasonDecodeTimeout    = "decode-timeout"
)

// Failure reports that one attachment could not be turned into a record.
type Failure struct {
	Filename string
	Reason   string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("extraction failed for %s (%s): %v", f.Filename, f.Reason, f.Err)
	}
	return fmt.Sprintf("extraction failed for %s (%s)", f.Filename, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Below this many characters the plain-text pass is considered to have
// missed the content and the row-layout pass runs instead.
const sparseTextThreshold = 20

// Extractor decodes PDF attachments and parses invoice fields out of their
// text. It holds no per-document state, so one instance serves all workers.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract decodes one PDF and parses its invoice fields. Identical input
// bytes always produce the identical record or the identical failure. The
// context deadline bounds the decode; malformed PDFs that panic the decoder
// surface as unreadable-stream failures.
func (e *Extractor) Extract(ctx context.Context, blob *models.AttachmentBlob) (*models.InvoiceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Failure{Filename: blob.Ref.Filename, Reason: ReasonDecodeTimeout, Err: err}
	}

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("pdf decode panicked: %v", r)}
			}
		}()
		text, err := decodeText(blob.Data)
		ch <- outcome{text: text, err: err}
	}()

	var text string
	select {
	case <-ctx.Done():
		return nil, &Failure{Filename: blob.Ref.Filename, Reason: ReasonDecodeTimeout, Err: ctx.Err()}
	case out := <-ch:
		if out.err != nil {
			return nil, &Failure{Filename: blob.Ref.Filename, Reason: ReasonUnreadableStream, Err: out.err}
		}
		text = out.text
	}

	rec, matched := parseInvoiceText(text, e.logger)
	if matched == 0 {
		return nil, &Failure{Filename: blob.Ref.Filename, Reason: ReasonNoAnchorsFound}
	}

	if rec.TotalAmount != 0 {
		if diff := math.Abs(rec.AmountSum() - rec.TotalAmount); diff > 0.01 {
			e.logger.Warn("invoice amounts do not sum to total",
				"filename", blob.Ref.Filename,
				"sum", rec.AmountSum(),
				"total", rec.TotalAmount,
			)
		}
	}

	e.logger.Debug("extracted invoice record",
		"filename", blob.Ref.Filename,
		"invoice_number", rec.InvoiceNumber,
		"anchors_matched", matched,
	)
	return &rec, nil
}

// decodeText extracts the document text. The plain-text pass handles
// ordinary generated invoices; PDFs whose text objects carry positioning
// instead of line breaks come back nearly empty from it, so a layout-aware
// row pass reassembles those.
func decodeText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var buf bytes.Buffer
	if plain, err := reader.GetPlainText(); err == nil {
		if _, err := io.Copy(&buf, plain); err != nil {
			return "", fmt.Errorf("failed to read pdf text: %w", err)
		}
	}

	text := buf.String()
	if len(strings.TrimSpace(text)) >= sparseTextThreshold {
		return text, nil
	}

	text, err = decodeTextByRows(reader)
	if err != nil {
		return "", err
	}
	return text, nil
}

func decodeTextByRows(reader *pdf.Reader) (string, error) {
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("failed to read pdf rows on page %d: %w", i, err)
		}
		for _, row := range rows {
			for _, word := range row.Content {
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
