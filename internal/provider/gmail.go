package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	internaloauth "github.com/altafino/invoice-analyzer/internal/oauth2"
	"github.com/altafino/invoice-analyzer/internal/types"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailProvider talks to the Gmail REST API on behalf of one credential.
type GmailProvider struct {
	oauthCfg   *oauth2.Config
	logger     *slog.Logger
	maxResults int64

	mu   sync.Mutex
	svc  *gmail.Service
	cred models.Credential
}

func newGmailProvider(ctx context.Context, cred models.Credential, cfg *types.Config, logger *slog.Logger) (*GmailProvider, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	maxResults := int64(cfg.Providers.MaxResults)
	if maxResults <= 0 {
		maxResults = 50
	}

	return &GmailProvider{
		svc:        svc,
		cred:       cred,
		oauthCfg:   internaloauth.GoogleConfig(cfg.Providers.OAuth.Google.ClientID, cfg.Providers.OAuth.Google.ClientSecret),
		logger:     logger,
		maxResults: maxResults,
	}, nil
}

// buildGmailQuery renders a search query in Gmail's operator syntax.
// Gmail's before: operator is exclusive, so the inclusive end date is
// shifted by one day.
func buildGmailQuery(q models.SearchQuery) string {
	var parts []string
	if q.Keywords != "" {
		parts = append(parts, fmt.Sprintf("subject:%q", q.Keywords))
	}
	parts = append(parts,
		"after:"+q.DateRange.Start.Format("2006/01/02"),
		"before:"+q.DateRange.End.AddDate(0, 0, 1).Format("2006/01/02"),
	)
	if q.Folder != "" && q.Folder != models.FolderInbox {
		parts = append(parts, "in:"+strings.ToLower(string(q.Folder)))
	}
	return strings.Join(parts, " ")
}

func (p *GmailProvider) Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
	query := buildGmailQuery(q)
	p.logger.Debug("gmail search", "query", query)

	var list *gmail.ListMessagesResponse
	err := p.do(ctx, "search", func(svc *gmail.Service) error {
		var err error
		list, err = svc.Users.Messages.List("me").Q(query).MaxResults(p.maxResults).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	emails := make([]models.Email, 0, len(list.Messages))
	for _, m := range list.Messages {
		email, err := p.GetEmail(ctx, m.Id)
		if err != nil {
			// One undecodable message must not sink the whole search.
			p.logger.Warn("skipping unreadable gmail message", "id", m.Id, "error", err)
			continue
		}
		emails = append(emails, *email)
	}

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})
	return emails, nil
}

func (p *GmailProvider) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	var msg *gmail.Message
	err := p.do(ctx, "get message", func(svc *gmail.Service) error {
		var err error
		msg, err = svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	email := &models.Email{ID: id}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				email.Subject = h.Value
			case "from":
				email.Sender = parseRFCSender(h.Value)
			}
		}
		collectGmailAttachments(msg.Payload.Parts, &email.Attachments)
	}
	email.Date = time.UnixMilli(msg.InternalDate).UTC()
	email.HasAttachments = len(email.Attachments) > 0
	return email, nil
}

// collectGmailAttachments walks the (possibly nested) MIME part tree.
func collectGmailAttachments(parts []*gmail.MessagePart, out *[]models.AttachmentRef) {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
			*out = append(*out, models.AttachmentRef{
				Filename: part.Filename,
				MimeType: part.MimeType,
				Size:     part.Body.Size,
				Locator:  part.Body.AttachmentId,
			})
		}
		collectGmailAttachments(part.Parts, out)
	}
}

func (p *GmailProvider) FetchAttachment(ctx context.Context, emailID string, ref models.AttachmentRef) (*models.AttachmentBlob, error) {
	var att *gmail.MessagePartBody
	err := p.do(ctx, "fetch attachment", func(svc *gmail.Service) error {
		var err error
		att, err = svc.Users.Messages.Attachments.Get("me", emailID, ref.Locator).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	// Gmail serves web-safe base64, with or without padding.
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(att.Data, "="))
	if err != nil {
		return nil, &APIError{Provider: TagGoogle, Op: "decode attachment", Err: err}
	}

	return &models.AttachmentBlob{Ref: ref, Data: data}, nil
}

func (p *GmailProvider) RefreshCredential(ctx context.Context) (models.Credential, error) {
	if err := p.refresh(ctx); err != nil {
		return models.Credential{}, &AuthError{Provider: TagGoogle, Reason: "credential refresh failed", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cred, nil
}

func (p *GmailProvider) service() *gmail.Service {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.svc
}

// refresh exchanges the stored refresh token for a new access token and
// rebuilds the API client around it.
func (p *GmailProvider) refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred, err := internaloauth.Refresh(ctx, p.oauthCfg, p.cred, p.logger)
	if err != nil {
		return err
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return fmt.Errorf("failed to rebuild gmail service: %w", err)
	}

	p.cred = cred
	p.svc = svc
	return nil
}

// do runs one API call. A rejected token is refreshed and the call retried
// once; only a token that cannot be refreshed surfaces as an auth failure.
func (p *GmailProvider) do(ctx context.Context, op string, call func(svc *gmail.Service) error) error {
	err := call(p.service())
	if err == nil {
		return nil
	}
	if isGoogleAuthErr(err) {
		if rerr := p.refresh(ctx); rerr == nil {
			p.logger.Debug("retrying after token refresh", "op", op)
			if err = call(p.service()); err == nil {
				return nil
			}
		}
	}
	return p.wrapErr(op, err)
}

func isGoogleAuthErr(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == 401 || apiErr.Code == 403)
}

func (p *GmailProvider) wrapErr(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return &AuthError{Provider: TagGoogle, Reason: "token rejected", Err: err}
		}
		return &APIError{Provider: TagGoogle, StatusCode: apiErr.Code, Op: op, Err: err}
	}
	return &APIError{Provider: TagGoogle, Op: op, Err: err}
}

// parseRFCSender prefers a strict RFC 5322 parse and falls back to the
// shared heuristic for the malformed From headers real mailboxes contain.
func parseRFCSender(raw string) models.Sender {
	if addr, err := mail.ParseAddress(raw); err == nil {
		name := addr.Name
		if name == "" {
			name = addr.Address
		}
		return models.Sender{Name: name, Address: addr.Address}
	}
	return ParseSender(raw)
}
