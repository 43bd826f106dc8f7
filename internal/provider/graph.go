package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	internaloauth "github.com/altafino/invoice-analyzer/internal/oauth2"
	"github.com/altafino/invoice-analyzer/internal/types"
	"golang.org/x/oauth2"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// Graph exposes well-known folders under fixed path names.
var graphFolders = map[models.Folder]string{
	models.FolderInbox:   "inbox",
	models.FolderArchive: "archive",
	models.FolderSent:    "sentitems",
	models.FolderDraft:   "drafts",
	models.FolderTrash:   "deleteditems",
}

// GraphProvider talks to the Microsoft Graph mail API on behalf of one
// credential.
type GraphProvider struct {
	httpClient *http.Client
	baseURL    string
	oauthCfg   *oauth2.Config
	logger     *slog.Logger
	maxResults int

	credMu sync.Mutex
	cred   models.Credential
}

func newGraphProvider(cred models.Credential, cfg *types.Config, logger *slog.Logger) *GraphProvider {
	baseURL := cfg.Providers.Graph.BaseURL
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}

	timeout := time.Duration(cfg.Providers.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxResults := cfg.Providers.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	return &GraphProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		cred:       cred,
		oauthCfg:   internaloauth.MicrosoftConfig(cfg.Providers.OAuth.Microsoft.ClientID, cfg.Providers.OAuth.Microsoft.ClientSecret),
		logger:     logger,
		maxResults: maxResults,
	}
}

type graphAddress struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	From             graphAddress `json:"from"`
	ReceivedDateTime time.Time    `json:"receivedDateTime"`
	HasAttachments   bool         `json:"hasAttachments"`
}

type graphAttachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	ContentBytes string `json:"contentBytes"`
}

func (p *GraphProvider) Search(ctx context.Context, q models.SearchQuery) ([]models.Email, error) {
	folder, ok := graphFolders[q.Folder]
	if !ok {
		folder = graphFolders[models.FolderInbox]
	}

	// receivedDateTime lt <end+1d> keeps the calendar end date inclusive.
	filter := fmt.Sprintf("receivedDateTime ge %s and receivedDateTime lt %s",
		q.DateRange.Start.Format("2006-01-02T15:04:05Z"),
		q.DateRange.End.AddDate(0, 0, 1).Format("2006-01-02T15:04:05Z"),
	)
	if q.Keywords != "" {
		filter += fmt.Sprintf(" and contains(subject,'%s')", q.Keywords)
	}

	params := url.Values{}
	params.Set("$filter", filter)
	params.Set("$select", "id,subject,from,receivedDateTime,hasAttachments")
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", fmt.Sprint(p.maxResults))

	endpoint := fmt.Sprintf("%s/me/mailFolders/%s/messages?%s", p.baseURL, folder, params.Encode())

	var page struct {
		Value []graphMessage `json:"value"`
	}
	if err := p.getJSON(ctx, "search", endpoint, &page); err != nil {
		return nil, err
	}

	emails := make([]models.Email, 0, len(page.Value))
	for _, msg := range page.Value {
		email := p.normalizeMessage(msg)
		if msg.HasAttachments {
			refs, err := p.listAttachments(ctx, msg.ID)
			if err != nil {
				p.logger.Warn("failed to list attachments", "id", msg.ID, "error", err)
			} else {
				email.Attachments = refs
			}
		}
		emails = append(emails, email)
	}

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})
	return emails, nil
}

func (p *GraphProvider) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	endpoint := fmt.Sprintf("%s/me/messages/%s?$select=id,subject,from,receivedDateTime,hasAttachments",
		p.baseURL, url.PathEscape(id))

	var msg graphMessage
	if err := p.getJSON(ctx, "get message", endpoint, &msg); err != nil {
		return nil, err
	}

	email := p.normalizeMessage(msg)
	if msg.HasAttachments {
		refs, err := p.listAttachments(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		email.Attachments = refs
	}
	return &email, nil
}

func (p *GraphProvider) normalizeMessage(msg graphMessage) models.Email {
	sender := models.Sender{
		Name:    msg.From.EmailAddress.Name,
		Address: msg.From.EmailAddress.Address,
	}
	if sender.Name == "" {
		sender.Name = sender.Address
	}
	return models.Email{
		ID:             msg.ID,
		Subject:        msg.Subject,
		Sender:         sender,
		Date:           msg.ReceivedDateTime.UTC(),
		HasAttachments: msg.HasAttachments,
	}
}

func (p *GraphProvider) listAttachments(ctx context.Context, messageID string) ([]models.AttachmentRef, error) {
	endpoint := fmt.Sprintf("%s/me/messages/%s/attachments?$select=id,name,contentType,size",
		p.baseURL, url.PathEscape(messageID))

	var page struct {
		Value []graphAttachment `json:"value"`
	}
	if err := p.getJSON(ctx, "list attachments", endpoint, &page); err != nil {
		return nil, err
	}

	refs := make([]models.AttachmentRef, 0, len(page.Value))
	for _, att := range page.Value {
		refs = append(refs, models.AttachmentRef{
			Filename: att.Name,
			MimeType: att.ContentType,
			Size:     att.Size,
			Locator:  att.ID,
		})
	}
	return refs, nil
}

func (p *GraphProvider) FetchAttachment(ctx context.Context, emailID string, ref models.AttachmentRef) (*models.AttachmentBlob, error) {
	endpoint := fmt.Sprintf("%s/me/messages/%s/attachments/%s",
		p.baseURL, url.PathEscape(emailID), url.PathEscape(ref.Locator))

	var att graphAttachment
	if err := p.getJSON(ctx, "fetch attachment", endpoint, &att); err != nil {
		return nil, err
	}

	// Large attachments omit contentBytes; their raw content hangs off the
	// $value sub-resource instead.
	if att.ContentBytes == "" {
		data, err := p.getRaw(ctx, "fetch attachment content", endpoint+"/$value")
		if err != nil {
			return nil, err
		}
		return &models.AttachmentBlob{Ref: ref, Data: data}, nil
	}

	data, err := base64.StdEncoding.DecodeString(att.ContentBytes)
	if err != nil {
		return nil, &APIError{Provider: TagMicrosoft, Op: "decode attachment", Err: err}
	}
	return &models.AttachmentBlob{Ref: ref, Data: data}, nil
}

func (p *GraphProvider) RefreshCredential(ctx context.Context) (models.Credential, error) {
	if err := p.refresh(ctx); err != nil {
		return models.Credential{}, &AuthError{Provider: TagMicrosoft, Reason: "credential refresh failed", Err: err}
	}
	p.credMu.Lock()
	defer p.credMu.Unlock()
	return p.cred, nil
}

func (p *GraphProvider) token() string {
	p.credMu.Lock()
	defer p.credMu.Unlock()
	return p.cred.AccessToken
}

// refresh exchanges the stored refresh token for a new access token and
// adopts it for subsequent calls.
func (p *GraphProvider) refresh(ctx context.Context) error {
	p.credMu.Lock()
	defer p.credMu.Unlock()

	cred, err := internaloauth.Refresh(ctx, p.oauthCfg, p.cred, p.logger)
	if err != nil {
		return err
	}
	p.cred = cred
	return nil
}

func (p *GraphProvider) getJSON(ctx context.Context, op, endpoint string, out any) error {
	body, err := p.get(ctx, op, endpoint)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &APIError{Provider: TagMicrosoft, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (p *GraphProvider) getRaw(ctx context.Context, op, endpoint string) ([]byte, error) {
	body, err := p.get(ctx, op, endpoint)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &APIError{Provider: TagMicrosoft, Op: op, Err: err}
	}
	return data, nil
}

// get performs one authenticated request. A rejected token is refreshed and
// the request retried once; only a token that cannot be refreshed surfaces
// as an auth failure.
func (p *GraphProvider) get(ctx context.Context, op, endpoint string) (io.ReadCloser, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, &APIError{Provider: TagMicrosoft, Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+p.token())
		req.Header.Set("Accept", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, &APIError{Provider: TagMicrosoft, Op: op, Err: err}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			if attempt == 0 {
				if err := p.refresh(ctx); err == nil {
					p.logger.Debug("retrying after token refresh", "op", op)
					continue
				}
			}
			return nil, &AuthError{Provider: TagMicrosoft, Reason: fmt.Sprintf("token rejected (HTTP %d)", resp.StatusCode)}
		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &APIError{
				Provider:   TagMicrosoft,
				StatusCode: resp.StatusCode,
				Op:         op,
				Err:        fmt.Errorf("%s", string(msg)),
			}
		}
	}
}
