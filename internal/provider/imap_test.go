package provider

import (
	"testing"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/emersion/go-imap"
)

func TestIMAPMessageIDCarriesFolder(t *testing.T) {
	msg := &imap.Message{
		Uid: 7,
		Envelope: &imap.Envelope{
			Subject: "發票",
			Date:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	email := normalizeIMAPMessage(msg, models.FolderArchive)
	if email.ID != "ARCHIVE/7" {
		t.Fatalf("id = %q, want ARCHIVE/7", email.ID)
	}

	folder, uid, err := parseIMAPID(email.ID)
	if err != nil {
		t.Fatalf("parseIMAPID: %v", err)
	}
	if folder != models.FolderArchive || uid != 7 {
		t.Errorf("round trip = %q/%d, want ARCHIVE/7", folder, uid)
	}
}

func TestParseIMAPID(t *testing.T) {
	tests := []struct {
		id      string
		folder  models.Folder
		uid     uint32
		wantErr bool
	}{
		{id: "INBOX/12", folder: models.FolderInbox, uid: 12},
		{id: "SENT/3", folder: models.FolderSent, uid: 3},
		{id: "42", folder: models.FolderInbox, uid: 42},
		{id: "Junk/5", wantErr: true},
		{id: "INBOX/abc", wantErr: true},
		{id: "", wantErr: true},
	}
	for _, tt := range tests {
		folder, uid, err := parseIMAPID(tt.id)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseIMAPID(%q) succeeded, want error", tt.id)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseIMAPID(%q): %v", tt.id, err)
			continue
		}
		if folder != tt.folder || uid != tt.uid {
			t.Errorf("parseIMAPID(%q) = %q/%d, want %q/%d", tt.id, folder, uid, tt.folder, tt.uid)
		}
	}
}

func TestCollectIMAPAttachments(t *testing.T) {
	bs := &imap.BodyStructure{
		MIMEType:    "multipart",
		MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain"},
			{
				MIMEType:          "application",
				MIMESubType:       "pdf",
				Size:              1024,
				DispositionParams: map[string]string{"filename": "invoice.pdf"},
			},
		},
	}

	var refs []models.AttachmentRef
	collectIMAPAttachments(bs, &refs)
	if len(refs) != 1 {
		t.Fatalf("refs = %+v, want one attachment", refs)
	}
	if refs[0].Filename != "invoice.pdf" || refs[0].MimeType != "application/pdf" {
		t.Errorf("ref = %+v", refs[0])
	}
	if refs[0].Locator != "invoice.pdf" {
		t.Errorf("locator = %q, want the filename", refs[0].Locator)
	}
}
