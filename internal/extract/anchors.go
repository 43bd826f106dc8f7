package extract

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
)

// Taiwanese uniform invoices label their fields in Chinese. Each anchor maps
// a label substring to a record field; matching is per line, first anchor
// wins, and the value is whatever follows the label's colon.
type anchor struct {
	labels []string
	assign func(rec *models.InvoiceRecord, value string, logger *slog.Logger) bool
}

var invoiceAnchors = []anchor{
	{
		labels: []string{"發票號碼"},
		assign: func(rec *models.InvoiceRecord, v string, _ *slog.Logger) bool {
			rec.InvoiceNumber = v
			return v != ""
		},
	},
	{
		labels: []string{"發票日期"},
		assign: func(rec *models.InvoiceRecord, v string, logger *slog.Logger) bool {
			if v == "" {
				return false
			}
			rec.InvoiceDate = normalizeDate(v, logger)
			return true
		},
	},
	{
		labels: []string{"買受人"},
		assign: func(rec *models.InvoiceRecord, v string, _ *slog.Logger) bool {
			rec.BuyerName = v
			return v != ""
		},
	},
	{
		labels: []string{"統一編號"},
		assign: func(rec *models.InvoiceRecord, v string, _ *slog.Logger) bool {
			rec.BuyerTaxID = v
			return v != ""
		},
	},
	{
		labels: []string{"賣方名稱", "營業人名稱", "賣方"},
		assign: func(rec *models.InvoiceRecord, v string, _ *slog.Logger) bool {
			rec.SellerName = v
			return v != ""
		},
	},
	{
		labels: []string{"應稅銷售額", "應稅金額", "應稅"},
		assign: moneyAssign(func(rec *models.InvoiceRecord, f float64) { rec.TaxableAmount = f }),
	},
	{
		labels: []string{"免稅銷售額", "免稅金額", "免稅"},
		assign: moneyAssign(func(rec *models.InvoiceRecord, f float64) { rec.TaxFreeAmount = f }),
	},
	{
		labels: []string{"零稅率銷售額", "零稅率"},
		assign: moneyAssign(func(rec *models.InvoiceRecord, f float64) { rec.ZeroTaxAmount = f }),
	},
	{
		labels: []string{"營業稅額", "營業稅", "稅額"},
		assign: moneyAssign(func(rec *models.InvoiceRecord, f float64) { rec.TaxAmount = f }),
	},
	{
		labels: []string{"總計", "總金額", "合計"},
		assign: moneyAssign(func(rec *models.InvoiceRecord, f float64) { rec.TotalAmount = f }),
	},
}

func moneyAssign(set func(*models.InvoiceRecord, float64)) func(*models.InvoiceRecord, string, *slog.Logger) bool {
	return func(rec *models.InvoiceRecord, v string, logger *slog.Logger) bool {
		f, err := parseMoney(v)
		if err != nil {
			logger.Warn("unparseable amount", "value", v, "error", err)
			return false
		}
		set(rec, f)
		return true
	}
}

// parseInvoiceText scans extracted PDF text line by line and returns the
// record plus the number of anchors that yielded a value. Zero matches means
// the document is not an invoice at all.
func parseInvoiceText(text string, logger *slog.Logger) (models.InvoiceRecord, int) {
	var rec models.InvoiceRecord
	matched := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, a := range invoiceAnchors {
			if label := matchLabel(line, a.labels); label != "" {
				if a.assign(&rec, anchorValue(line, label), logger) {
					matched++
				}
				break
			}
		}
	}
	return rec, matched
}

func matchLabel(line string, labels []string) string {
	for _, label := range labels {
		if strings.Contains(line, label) {
			return label
		}
	}
	return ""
}

// anchorValue returns the text after the label's colon. Both the full-width
// and ASCII colon appear in the wild; when neither does, whatever follows
// the label itself is the value.
func anchorValue(line, label string) string {
	rest := line[strings.Index(line, label)+len(label):]
	for _, sep := range []string{"：", ":"} {
		if i := strings.Index(rest, sep); i >= 0 {
			rest = rest[i+len(sep):]
			break
		}
	}
	return strings.TrimSpace(rest)
}

// parseMoney strips currency decoration and thousands separators.
func parseMoney(v string) (float64, error) {
	cleaned := strings.NewReplacer(
		"NT$", "",
		"$", "",
		",", "",
		"元", "",
		" ", "",
	).Replace(v)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	return f, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006年01月02日",
	"2006年1月2日",
}

// normalizeDate renders dates in the canonical YYYY-MM-DD form. Years below
// 1911 are Republic of China calendar years. Unrecognized formats pass
// through unchanged rather than losing the raw value.
func normalizeDate(v string, logger *slog.Logger) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			if t.Year() < 1911 {
				t = t.AddDate(1911, 0, 0)
			}
			return t.Format("2006-01-02")
		}
	}
	logger.Debug("unrecognized invoice date format", "value", v)
	return v
}
