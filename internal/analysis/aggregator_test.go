package analysis

import (
	"testing"

	"github.com/altafino/invoice-analyzer/internal/models"
)

func TestAggregatorSnapshotMidFlight(t *testing.T) {
	agg := NewAggregator(3, []string{"unresolved-email"})

	agg.Record(2, &models.InvoiceRecord{InvoiceNumber: "C"})
	// Slot 0 and 1 still in flight.

	result := agg.Result()
	if len(result.Invoices) != 1 || result.Invoices[0].InvoiceNumber != "C" {
		t.Errorf("invoices = %+v", result.Invoices)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != "unresolved-email" {
		t.Errorf("failed = %+v", result.FailedFiles)
	}

	agg.Record(0, &models.InvoiceRecord{InvoiceNumber: "A"})
	agg.Fail(1, "b.pdf")

	result = agg.Result()
	if len(result.Invoices) != 2 {
		t.Fatalf("invoices = %+v", result.Invoices)
	}
	// Slot order, not completion order.
	if result.Invoices[0].InvoiceNumber != "A" || result.Invoices[1].InvoiceNumber != "C" {
		t.Errorf("order = %v, %v", result.Invoices[0].InvoiceNumber, result.Invoices[1].InvoiceNumber)
	}
	if len(result.FailedFiles) != 2 {
		t.Errorf("failed = %+v", result.FailedFiles)
	}
}
