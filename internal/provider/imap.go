package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/types"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
)

// Common mailbox names; servers that follow the SPECIAL-USE convention
// accept these directly.
var imapFolders = map[models.Folder]string{
	models.FolderInbox:   "INBOX",
	models.FolderArchive: "Archive",
	models.FolderSent:    "Sent",
	models.FolderDraft:   "Drafts",
	models.FolderTrash:   "Trash",
}

// IMAPProvider serves mailboxes that expose no REST API. The credential's
// access token doubles as the account password; each call opens its own
// connection and logs out when done.
type IMAPProvider struct {
	cred   models.Credential
	cfg    *types.Config
	logger *slog.Logger
}

func newIMAPProvider(cred models.Credential, cfg *types.Config, logger *slog.Logger) *IMAPProvider {
	return &IMAPProvider{cred: cred, cfg: cfg, logger: logger}
}

func (p *IMAPProvider) connect(ctx context.Context) (*client.Client, error) {
	imapCfg := p.cfg.Providers.IMAP
	server := fmt.Sprintf("%s:%d", imapCfg.Server, imapCfg.DefaultPort)

	p.logger.Debug("connecting to IMAP server",
		"server", imapCfg.Server,
		"port", imapCfg.DefaultPort,
		"tls_enabled", imapCfg.TLS.Enabled,
		"username", imapCfg.Username,
	)

	tlsConfig := &tls.Config{
		ServerName:         imapCfg.Server,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !imapCfg.TLS.VerifyCert,
	}

	var c *client.Client
	var err error

	// Port 143 starts plain and upgrades with STARTTLS; anything else with
	// TLS enabled (typically 993) dials TLS directly.
	if imapCfg.DefaultPort == 143 {
		c, err = client.Dial(server)
		if err != nil {
			return nil, &APIError{Provider: TagIMAP, Op: "connect", Err: err}
		}
		if imapCfg.TLS.Enabled {
			if err := c.StartTLS(tlsConfig); err != nil {
				p.logger.Warn("STARTTLS failed, continuing with plain connection", "error", err)
			}
		}
	} else if imapCfg.TLS.Enabled {
		c, err = client.DialTLS(server, tlsConfig)
		if err != nil {
			return nil, &APIError{Provider: TagIMAP, Op: "connect", Err: err}
		}
	} else {
		c, err = client.Dial(server)
		if err != nil {
			return nil, &APIError{Provider: TagIMAP, Op: "connect", Err: err}
		}
	}

	if timeout := time.Duration(p.cfg.Providers.Timeout) * time.Second; timeout > 0 {
		c.Timeout = timeout
	}

	if err := c.Login(imapCfg.Username, p.cred.AccessToken); err != nil {
		c.Logout()
		return nil, &AuthError{Provider: TagIMAP, Reason: "login rejected", Err: err}
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && (c.Timeout == 0 || remaining < c.Timeout) {
			c.Timeout = remaining
		}
	}

	return c, nil
}

func (p *IMAPProvider) selectFolder(c *client.Client, folder models.Folder) error {
	name, ok := imapFolders[folder]
	if !ok {
		name = imapFolders[models.FolderInbox]
	}
	if _, err := c.Select(name, true); err != nil {
		return &APIError{Provider: TagIMAP, Op: "select " + name, Err: err}
	}
	return nil
}

func (p *IMAPProvider) Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
	c, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	folder := q.Folder
	if !models.ValidFolder(folder) {
		folder = models.FolderInbox
	}
	if err := p.selectFolder(c, folder); err != nil {
		return nil, err
	}

	// SEARCH BEFORE is exclusive of the given date, so the inclusive end
	// date is shifted by one day.
	criteria := imap.NewSearchCriteria()
	criteria.Since = q.DateRange.Start
	criteria.Before = q.DateRange.End.AddDate(0, 0, 1)
	if q.Keywords != "" {
		criteria.Header.Set("Subject", q.Keywords)
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, &APIError{Provider: TagIMAP, Op: "search", Err: err}
	}
	if len(uids) == 0 {
		return []models.Email{}, nil
	}

	if max := p.cfg.Providers.MaxResults; max > 0 && len(uids) > max {
		// UIDs ascend with delivery order; keep the newest ones.
		uids = uids[len(uids)-max:]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchBodyStructure, imap.FetchUid}, messages)
	}()

	var emails []models.Email
	for msg := range messages {
		emails = append(emails, normalizeIMAPMessage(msg, folder))
	}
	if err := <-done; err != nil {
		return nil, &APIError{Provider: TagIMAP, Op: "fetch envelopes", Err: err}
	}

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})
	return emails, nil
}

func (p *IMAPProvider) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	folder, uid, err := parseIMAPID(id)
	if err != nil {
		return nil, err
	}

	c, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if err := p.selectFolder(c, folder); err != nil {
		return nil, err
	}

	msg, err := p.fetchOne(c, uid, []imap.FetchItem{imap.FetchEnvelope, imap.FetchBodyStructure, imap.FetchUid})
	if err != nil {
		return nil, err
	}

	email := normalizeIMAPMessage(msg, folder)
	return &email, nil
}

func (p *IMAPProvider) FetchAttachment(ctx context.Context, emailID string, ref models.AttachmentRef) (*models.AttachmentBlob, error) {
	folder, uid, err := parseIMAPID(emailID)
	if err != nil {
		return nil, err
	}

	c, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if err := p.selectFolder(c, folder); err != nil {
		return nil, err
	}

	msg, err := p.fetchOne(c, uid, []imap.FetchItem{imap.FetchRFC822, imap.FetchUid})
	if err != nil {
		return nil, err
	}

	var raw []byte
	for _, literal := range msg.Body {
		b, err := io.ReadAll(literal)
		if err != nil {
			return nil, &APIError{Provider: TagIMAP, Op: "read message body", Err: err}
		}
		raw = b
		break
	}
	if len(raw) == 0 {
		return nil, &APIError{Provider: TagIMAP, Op: "read message body", Err: fmt.Errorf("empty message body")}
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, &APIError{Provider: TagIMAP, Op: "parse message", Err: err}
	}

	for _, att := range env.Attachments {
		if strings.EqualFold(att.FileName, ref.Locator) {
			return &models.AttachmentBlob{Ref: ref, Data: att.Content}, nil
		}
	}
	return nil, &APIError{Provider: TagIMAP, Op: "fetch attachment",
		Err: fmt.Errorf("attachment %q not found in message %s", ref.Locator, emailID)}
}

// RefreshCredential is a no-op for password-authenticated accounts.
func (p *IMAPProvider) RefreshCredential(ctx context.Context) (models.Credential, error) {
	return p.cred, nil
}

func (p *IMAPProvider) fetchOne(c *client.Client, uid uint32, items []imap.FetchItem) (*imap.Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, &APIError{Provider: TagIMAP, Op: "fetch message", Err: err}
	}
	if msg == nil {
		return nil, &APIError{Provider: TagIMAP, Op: "fetch message",
			Err: fmt.Errorf("message %d not found", uid)}
	}
	return msg, nil
}

// normalizeIMAPMessage builds the provider-facing email. UIDs are only
// unique within one mailbox, so the id carries the folder too.
func normalizeIMAPMessage(msg *imap.Message, folder models.Folder) models.Email {
	email := models.Email{ID: imapMessageID(folder, msg.Uid)}

	if msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
		email.Date = msg.Envelope.Date.UTC()
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			email.Sender = models.Sender{
				Name:    from.PersonalName,
				Address: from.Address(),
			}
			if email.Sender.Name == "" {
				email.Sender.Name = email.Sender.Address
			}
		}
	}

	if msg.BodyStructure != nil {
		collectIMAPAttachments(msg.BodyStructure, &email.Attachments)
	}
	email.HasAttachments = len(email.Attachments) > 0
	return email
}

// collectIMAPAttachments walks the body structure tree. The attachment
// filename doubles as the locator; FetchAttachment re-parses the full
// message and matches on it.
func collectIMAPAttachments(bs *imap.BodyStructure, out *[]models.AttachmentRef) {
	if bs == nil {
		return
	}
	for _, part := range bs.Parts {
		collectIMAPAttachments(part, out)
	}
	filename, err := bs.Filename()
	if err != nil || filename == "" {
		return
	}
	*out = append(*out, models.AttachmentRef{
		Filename: filename,
		MimeType: strings.ToLower(bs.MIMEType + "/" + bs.MIMESubType),
		Size:     int64(bs.Size),
		Locator:  filename,
	})
}

func imapMessageID(folder models.Folder, uid uint32) string {
	return string(folder) + "/" + strconv.FormatUint(uint64(uid), 10)
}

// parseIMAPID splits a "FOLDER/uid" id back into its parts. A bare uid is
// read as an INBOX message.
func parseIMAPID(id string) (models.Folder, uint32, error) {
	folder := models.FolderInbox
	uidPart := id
	if i := strings.LastIndex(id, "/"); i >= 0 {
		folder = models.Folder(id[:i])
		uidPart = id[i+1:]
		if !models.ValidFolder(folder) {
			return "", 0, &APIError{Provider: TagIMAP, Op: "parse message id",
				Err: fmt.Errorf("unknown folder in IMAP message id %q", id)}
		}
	}
	uid, err := strconv.ParseUint(uidPart, 10, 32)
	if err != nil {
		return "", 0, &APIError{Provider: TagIMAP, Op: "parse message id",
			Err: fmt.Errorf("invalid IMAP message id %q", id)}
	}
	return folder, uint32(uid), nil
}
