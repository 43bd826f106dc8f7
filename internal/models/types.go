package models

import (
	"strings"
	"time"
)

// Folder is a normalized mailbox folder name shared across providers.
type Folder string

const (
	FolderInbox   Folder = "INBOX"
	FolderArchive Folder = "ARCHIVE"
	FolderSent    Folder = "SENT"
	FolderDraft   Folder = "DRAFT"
	FolderTrash   Folder = "TRASH"
)

// ValidFolder reports whether f is one of the supported folder names.
func ValidFolder(f Folder) bool {
	switch f {
	case FolderInbox, FolderArchive, FolderSent, FolderDraft, FolderTrash:
		return true
	}
	return false
}

// DateRange is an inclusive calendar date range for mailbox searches.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SearchQuery describes one mailbox search. Empty keywords means "all".
type SearchQuery struct {
	Keywords  string    `json:"keywords"`
	DateRange DateRange `json:"dateRange"`
	Folder    Folder    `json:"folder"`
}

// Sender is the normalized sender identity of an email.
type Sender struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// AttachmentRef identifies one attachment of an email. Locator is
// provider-internal (Gmail attachment id, Graph attachment id, IMAP part
// path) and only meaningful together with the owning email id.
type AttachmentRef struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"sizeBytes"`
	Locator  string `json:"-"`
}

// IsPDF reports whether the attachment looks like a PDF document.
func (r AttachmentRef) IsPDF() bool {
	return strings.EqualFold(r.MimeType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(r.Filename), ".pdf")
}

// Email is a provider-normalized mailbox message. Immutable once fetched.
type Email struct {
	ID             string          `json:"id"`
	Subject        string          `json:"subject"`
	Sender         Sender          `json:"sender"`
	Date           time.Time       `json:"date"`
	HasAttachments bool            `json:"hasAttachments"`
	Attachments    []AttachmentRef `json:"attachments"`
}

// AttachmentBlob is a decoded attachment. Owned by the fetcher until handed
// to the extractor; never shared between units of work.
type AttachmentBlob struct {
	Ref  AttachmentRef
	Data []byte
}

// InvoiceRecord holds the fields extracted from one invoice PDF. Missing
// optional fields keep their zero sentinel; monetary values are non-negative.
type InvoiceRecord struct {
	EmailSubject  string  `json:"email_subject"`
	EmailSender   string  `json:"email_sender"`
	EmailDate     string  `json:"email_date"`
	InvoiceNumber string  `json:"invoice_number"`
	InvoiceDate   string  `json:"invoice_date"`
	BuyerName     string  `json:"buyer_name"`
	BuyerTaxID    string  `json:"buyer_tax_id"`
	SellerName    string  `json:"seller_name"`
	TaxableAmount float64 `json:"taxable_amount"`
	TaxFreeAmount float64 `json:"tax_free_amount"`
	ZeroTaxAmount float64 `json:"zero_tax_amount"`
	TaxAmount     float64 `json:"tax_amount"`
	TotalAmount   float64 `json:"total_amount"`
}

// AmountSum returns the sum of the component amounts. The extractor logs a
// warning when this differs from TotalAmount but keeps the record.
func (r InvoiceRecord) AmountSum() float64 {
	return r.TaxableAmount + r.TaxFreeAmount + r.ZeroTaxAmount + r.TaxAmount
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// AnalysisProgress is the poll snapshot of one job.
type AnalysisProgress struct {
	Total   int       `json:"total"`
	Current int       `json:"current"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// AnalysisResult aggregates the outcome of one job: successfully parsed
// invoices in mailbox search order plus the filenames that failed.
type AnalysisResult struct {
	Invoices    []InvoiceRecord `json:"invoices"`
	FailedFiles []string        `json:"failed_files"`
}

// Credential is an opaque bearer token handed through from the auth
// boundary. RefreshToken may be empty, in which case an expired token
// cannot be recovered.
type Credential struct {
	AccessToken  string
	RefreshToken string
}
