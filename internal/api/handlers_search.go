package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/provider"
	"github.com/altafino/invoice-analyzer/internal/search"
	"github.com/altafino/invoice-analyzer/internal/types"
	"github.com/labstack/echo/v4"
)

// SearchRequest is the POST /api/emails/search body.
type SearchRequest struct {
	Provider     string `json:"provider"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Keywords     string `json:"keywords"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Folder       string `json:"folder,omitempty"`
}

// SearchResponse wraps the matching emails.
type SearchResponse struct {
	Emails []models.Email `json:"emails"`
	Count  int            `json:"count"`
}

// SearchHandler serves mailbox searches.
type SearchHandler struct {
	cfg         *types.Config
	logger      *slog.Logger
	newProvider func(ctx context.Context, tag string, cred models.Credential, cfg *types.Config, logger *slog.Logger) (provider.Provider, error)
}

func NewSearchHandler(cfg *types.Config, logger *slog.Logger) SearchHandler {
	return SearchHandler{cfg: cfg, logger: logger, newProvider: provider.New}
}

// HandleSearch runs one mailbox search and returns the matches newest
// first. Invalid date ranges fail before any provider traffic.
func (h SearchHandler) HandleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	query, err := buildQuery(req)
	if err != nil {
		return err
	}
	// Validation runs before the provider is even constructed, so a bad
	// range never costs a network round trip.
	if err := search.Validate(query); err != nil {
		return err
	}

	cred := requestCredential(c, req.AccessToken, req.RefreshToken)
	p, err := h.newProvider(c.Request().Context(), req.Provider, cred, h.cfg, h.logger)
	if err != nil {
		return err
	}

	client := search.NewClient(p, h.logger)
	emails, err := client.Search(c.Request().Context(), query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SearchResponse{Emails: emails, Count: len(emails)})
}

// requestCredential takes the bearer token from the Authorization header
// when one is present, otherwise from the request body.
func requestCredential(c echo.Context, bodyToken, refreshToken string) models.Credential {
	cred := models.Credential{AccessToken: bodyToken, RefreshToken: refreshToken}
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
			cred.AccessToken = token
		}
	}
	return cred
}

func buildQuery(req SearchRequest) (models.SearchQuery, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return models.SearchQuery{}, NewBadRequestError("start_date must be YYYY-MM-DD", err)
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return models.SearchQuery{}, NewBadRequestError("end_date must be YYYY-MM-DD", err)
	}
	return models.SearchQuery{
		Keywords:  req.Keywords,
		DateRange: models.DateRange{Start: start, End: end},
		Folder:    models.Folder(req.Folder),
	}, nil
}
