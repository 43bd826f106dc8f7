package analysis

import (
	"sync"

	"github.com/altafino/invoice-analyzer/internal/models"
)

type slot struct {
	record *models.InvoiceRecord
	failed string
}

// Aggregator collects per-unit outcomes into mailbox search order. Each unit
// owns one slot, so completion order never changes the output order, and a
// snapshot can be taken while workers are still writing.
type Aggregator struct {
	mu          sync.Mutex
	slots       []slot
	preFailures []string
}

// NewAggregator sizes the slot table for one slot per unit. preFailures are
// failures recorded before units existed, such as emails that could not be
// resolved; they surface ahead of per-unit failures.
func NewAggregator(total int, preFailures []string) *Aggregator {
	return &Aggregator{
		slots:       make([]slot, total),
		preFailures: preFailures,
	}
}

// Record stores a successful extraction in the unit's slot.
func (a *Aggregator) Record(i int, rec *models.InvoiceRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots[i] = slot{record: rec}
}

// Fail marks the unit's slot with its failed filename.
func (a *Aggregator) Fail(i int, filename string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots[i] = slot{failed: filename}
}

// Result snapshots the outcomes recorded so far. Unfinished slots are
// simply absent; calling again after more units finish returns a superset.
func (a *Aggregator) Result() models.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := models.AnalysisResult{
		Invoices:    []models.InvoiceRecord{},
		FailedFiles: append([]string{}, a.preFailures...),
	}
	for _, s := range a.slots {
		switch {
		case s.record != nil:
			result.Invoices = append(result.Invoices, *s.record)
		case s.failed != "":
			result.FailedFiles = append(result.FailedFiles, s.failed)
		}
	}
	return result
}
