package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/types"
	"golang.org/x/oauth2"
)

func testGraphProvider(t *testing.T, handler http.Handler) *GraphProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &types.Config{}
	cfg.Providers.Graph.BaseURL = srv.URL
	cfg.Providers.MaxResults = 10

	return newGraphProvider(
		models.Credential{AccessToken: "test-token"},
		cfg,
		slog.New(slog.NewTextHandler(testWriter{t}, nil)),
	)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestGraphSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/mailFolders/inbox/messages", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		filter := r.URL.Query().Get("$filter")
		if !strings.Contains(filter, "receivedDateTime ge 2024-03-01") {
			t.Errorf("filter missing start date: %q", filter)
		}
		if !strings.Contains(filter, "receivedDateTime lt 2024-04-01") {
			t.Errorf("filter end date not shifted one day past inclusive end: %q", filter)
		}
		if !strings.Contains(filter, "contains(subject,'發票')") {
			t.Errorf("filter missing subject clause: %q", filter)
		}
		fmt.Fprint(w, `{"value":[
			{"id":"m1","subject":"三月發票","from":{"emailAddress":{"name":"全聯","address":"invoice@pxmart.com.tw"}},"receivedDateTime":"2024-03-05T08:00:00Z","hasAttachments":false},
			{"id":"m2","subject":"發票通知","from":{"emailAddress":{"address":"noreply@einvoice.nat.gov.tw"}},"receivedDateTime":"2024-03-20T08:00:00Z","hasAttachments":true}
		]}`)
	})
	mux.HandleFunc("/me/messages/m2/attachments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"id":"att1","name":"invoice.pdf","contentType":"application/pdf","size":2048}]}`)
	})

	p := testGraphProvider(t, mux)
	emails, err := p.Search(context.Background(), models.SearchQuery{
		Keywords: "發票",
		DateRange: models.DateRange{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		Folder: models.FolderInbox,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("got %d emails, want 2", len(emails))
	}

	// Newest first.
	if emails[0].ID != "m2" || emails[1].ID != "m1" {
		t.Errorf("order = %s, %s; want m2, m1", emails[0].ID, emails[1].ID)
	}

	// Sender with no display name falls back to the address.
	if emails[0].Sender.Name != "noreply@einvoice.nat.gov.tw" {
		t.Errorf("sender name = %q", emails[0].Sender.Name)
	}

	if len(emails[0].Attachments) != 1 {
		t.Fatalf("got %d attachment refs, want 1", len(emails[0].Attachments))
	}
	ref := emails[0].Attachments[0]
	if ref.Filename != "invoice.pdf" || ref.Locator != "att1" || ref.Size != 2048 {
		t.Errorf("unexpected attachment ref: %+v", ref)
	}
}

func TestGraphSearchAuthError(t *testing.T) {
	p := testGraphProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	}))

	_, err := p.Search(context.Background(), models.SearchQuery{Folder: models.FolderInbox})
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %T (%v), want *AuthError", err, err)
	}
	if authErr.Provider != TagMicrosoft {
		t.Errorf("provider = %q", authErr.Provider)
	}
}

func TestGraphRefreshesRejectedToken(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","token_type":"Bearer","refresh_token":"rt","expires_in":3600}`)
	})
	mux.HandleFunc("/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id":"m1","subject":"發票","receivedDateTime":"2024-03-05T08:00:00Z","hasAttachments":false}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &types.Config{}
	cfg.Providers.Graph.BaseURL = srv.URL
	cfg.Providers.MaxResults = 10
	cfg.Providers.OAuth.Microsoft.ClientID = "client-id"

	p := newGraphProvider(
		models.Credential{AccessToken: "stale-token", RefreshToken: "rt"},
		cfg,
		slog.New(slog.NewTextHandler(testWriter{t}, nil)),
	)
	p.oauthCfg.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token"}

	email, err := p.GetEmail(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetEmail after refresh: %v", err)
	}
	if email.Subject != "發票" {
		t.Errorf("subject = %q", email.Subject)
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint hit %d times, want 1", tokenCalls)
	}
	if got := p.token(); got != "fresh-token" {
		t.Errorf("stored token = %q, want the refreshed one", got)
	}
}

func TestGraphSearchAPIError(t *testing.T) {
	p := testGraphProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"TooManyRequests"}}`, http.StatusTooManyRequests)
	}))

	_, err := p.Search(context.Background(), models.SearchQuery{Folder: models.FolderInbox})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T (%v), want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
}

func TestGraphFetchAttachmentInline(t *testing.T) {
	content := []byte("%PDF-1.4 test content")
	mux := http.NewServeMux()
	mux.HandleFunc("/me/messages/m1/attachments/att1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":"att1","name":"invoice.pdf","contentType":"application/pdf","size":%d,"contentBytes":%q}`,
			len(content), base64.StdEncoding.EncodeToString(content))
	})

	p := testGraphProvider(t, mux)
	ref := models.AttachmentRef{Filename: "invoice.pdf", Locator: "att1"}
	blob, err := p.FetchAttachment(context.Background(), "m1", ref)
	if err != nil {
		t.Fatalf("FetchAttachment: %v", err)
	}
	if string(blob.Data) != string(content) {
		t.Errorf("data = %q, want %q", blob.Data, content)
	}
}

func TestGraphFetchAttachmentLarge(t *testing.T) {
	content := []byte("%PDF-1.4 large body")
	mux := http.NewServeMux()
	mux.HandleFunc("/me/messages/m1/attachments/att1", func(w http.ResponseWriter, r *http.Request) {
		// No contentBytes in the metadata response.
		fmt.Fprint(w, `{"id":"att1","name":"big.pdf","contentType":"application/pdf","size":99999999}`)
	})
	mux.HandleFunc("/me/messages/m1/attachments/att1/$value", func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})

	p := testGraphProvider(t, mux)
	ref := models.AttachmentRef{Filename: "big.pdf", Locator: "att1"}
	blob, err := p.FetchAttachment(context.Background(), "m1", ref)
	if err != nil {
		t.Fatalf("FetchAttachment: %v", err)
	}
	if string(blob.Data) != string(content) {
		t.Errorf("data = %q, want %q", blob.Data, content)
	}
}

func TestNewRejectsEmptyCredential(t *testing.T) {
	cfg := &types.Config{}
	_, err := New(context.Background(), TagMicrosoft, models.Credential{}, cfg, slog.Default())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %T (%v), want *AuthError", err, err)
	}
}

func TestNewUnknownTag(t *testing.T) {
	cfg := &types.Config{}
	_, err := New(context.Background(), "yahoo", models.Credential{AccessToken: "x"}, cfg, slog.Default())
	if err == nil {
		t.Fatal("expected error for unknown provider tag")
	}
}
